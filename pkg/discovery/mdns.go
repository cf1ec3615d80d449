package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// DNS-SD naming for devices that advertise themselves over mDNS in
// addition to answering the UDP beacon.
const (
	ServiceKlyqa  = "_klyqa._tcp"
	DefaultDomain = "local."
)

// Entry is one mDNS discovery result.
type Entry struct {
	Instance string
	Host     string
	Port     int
	Addrs    []net.IP
	Text     []string
}

// MDNSResolver is the interface for mDNS service browsing.
// This allows for dependency injection in tests.
type MDNSResolver interface {
	// Browse looks up service instances and streams them to entries
	// until ctx is done.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// MDNSResolverFactory creates MDNSResolver instances.
type MDNSResolverFactory interface {
	New() (MDNSResolver, error)
}

// zeroconfResolverFactory is the production implementation using
// grandcat/zeroconf. Browsing uses every multicast-capable interface.
type zeroconfResolverFactory struct{}

func (z *zeroconfResolverFactory) New() (MDNSResolver, error) {
	return zeroconf.NewResolver()
}

// BrowserConfig holds configuration for the mDNS Browser.
type BrowserConfig struct {
	// Service is the DNS-SD service type (default: ServiceKlyqa).
	Service string

	// Domain is the DNS-SD domain (default: DefaultDomain).
	Domain string

	// ResolverFactory is the factory for creating mDNS resolvers.
	// If nil, the default zeroconf factory is used.
	ResolverFactory MDNSResolverFactory

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// Browser discovers devices via DNS-SD.
type Browser struct {
	service string
	domain  string
	factory MDNSResolverFactory
	log     logging.LeveledLogger

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBrowser creates a new Browser with the given configuration.
func NewBrowser(config BrowserConfig) *Browser {
	b := &Browser{
		service: config.Service,
		domain:  config.Domain,
		factory: config.ResolverFactory,
	}
	if b.service == "" {
		b.service = ServiceKlyqa
	}
	if b.domain == "" {
		b.domain = DefaultDomain
	}
	if b.factory == nil {
		b.factory = &zeroconfResolverFactory{}
	}
	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("discovery-mdns")
	}
	return b
}

// Start begins browsing and calls handler for each discovered entry.
// Browsing continues until Stop is called or ctx expires.
func (b *Browser) Start(ctx context.Context, handler func(Entry)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}

	resolver, err := b.factory.New()
	if err != nil {
		b.mu.Unlock()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.started = true
	b.mu.Unlock()

	entries := make(chan *zeroconf.ServiceEntry, 8)

	// The zeroconf client closes entries when ctx is done, but only
	// once Browse has accepted it. Start consuming after that point so
	// a Browse failure cannot strand the consumer on an open channel.
	if err := resolver.Browse(ctx, b.service, b.domain, entries); err != nil {
		cancel()
		b.mu.Lock()
		b.started = false
		b.cancel = nil
		b.mu.Unlock()
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for e := range entries {
			if e == nil {
				continue
			}
			addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
			addrs = append(addrs, e.AddrIPv4...)
			addrs = append(addrs, e.AddrIPv6...)
			if b.log != nil {
				b.log.Debugf("mDNS entry %s at %v:%d", e.Instance, addrs, e.Port)
			}
			handler(Entry{
				Instance: e.Instance,
				Host:     e.HostName,
				Port:     e.Port,
				Addrs:    addrs,
				Text:     e.Text,
			})
		}
	}()

	if b.log != nil {
		b.log.Infof("browsing %s.%s", b.service, b.domain)
	}
	return nil
}

// Stop ends browsing. The handler receives no further entries once
// Stop returns.
func (b *Browser) Stop() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.closed = true
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	return nil
}
