package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/klyqa-lan/pkg/device"
	"github.com/backkem/klyqa-lan/pkg/discovery"
	"github.com/backkem/klyqa-lan/pkg/keystore"
	"github.com/backkem/klyqa-lan/pkg/message"
)

// DispatcherConfig configures the connection dispatcher.
type DispatcherConfig struct {
	// Listener is the TCP listener devices connect to. Required.
	Listener net.Listener

	// Beacon is the discovery beacon to trigger when work is queued.
	// Optional.
	Beacon *discovery.Beacon

	// Registry, Keys and Queue are shared with the connection
	// handlers. Required.
	Registry *device.Registry
	Keys     *keystore.Store
	Queue    *message.Queue

	// BroadcastDiscovery broadcasts on every pass instead of only when
	// work is queued.
	BroadcastDiscovery bool

	// AcceptPoll is the listener readability poll interval
	// (default: DefaultAcceptPoll).
	AcceptPoll time.Duration

	// ConnectionTimeout bounds one connection handler
	// (default: DefaultConnectionTimeout).
	ConnectionTimeout time.Duration

	// HandshakeReadTimeout is the per-read deadline inside handlers
	// (default: DefaultHandshakeReadTimeout).
	HandshakeReadTimeout time.Duration

	// LockTimeout bounds device use-lock acquisition (default: 30 s).
	LockTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Dispatcher drives discovery and accepts device connections. Each
// accepted connection runs its own handler goroutine bounded by the
// connection timeout; at most one live connection per remote IP.
type Dispatcher struct {
	listener net.Listener
	beacon   *discovery.Beacon
	registry *device.Registry
	keys     *keystore.Store
	queue    *message.Queue
	log      logging.LeveledLogger
	connLog  logging.LeveledLogger

	broadcastDiscovery bool
	acceptPoll         time.Duration
	connTimeout        time.Duration
	readTimeout        time.Duration
	lockTimeout        time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	closeCh chan struct{}
	wg      sync.WaitGroup
	connSeq atomic.Uint64

	addrMu sync.Mutex
	addrs  map[string]bool

	mu      sync.Mutex
	started bool
	closed  bool
}

// deadliner is satisfied by net.TCPListener; it lets the accept loop
// poll with a short deadline instead of blocking.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// NewDispatcher creates a dispatcher over an existing listener.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Listener == nil || config.Registry == nil || config.Keys == nil || config.Queue == nil {
		return nil, errors.New("controller: dispatcher needs listener, registry, keys and queue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		listener:           config.Listener,
		beacon:             config.Beacon,
		registry:           config.Registry,
		keys:               config.Keys,
		queue:              config.Queue,
		broadcastDiscovery: config.BroadcastDiscovery,
		acceptPoll:         config.AcceptPoll,
		connTimeout:        config.ConnectionTimeout,
		readTimeout:        config.HandshakeReadTimeout,
		lockTimeout:        config.LockTimeout,
		ctx:                ctx,
		cancel:             cancel,
		closeCh:            make(chan struct{}),
		addrs:              make(map[string]bool),
	}
	if d.acceptPoll <= 0 {
		d.acceptPoll = DefaultAcceptPoll
	}
	if d.connTimeout <= 0 {
		d.connTimeout = DefaultConnectionTimeout
	}
	if d.readTimeout <= 0 {
		d.readTimeout = DefaultHandshakeReadTimeout
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("dispatcher")
		d.connLog = config.LoggerFactory.NewLogger("conn")
	}
	return d, nil
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	d.mu.Unlock()

	if d.log != nil {
		d.log.Infof("dispatching on %s", d.listener.Addr())
	}

	d.wg.Add(1)
	go d.loop()
	return nil
}

// Stop closes the listener, cancels every connection handler and waits
// for them to finish.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	d.mu.Unlock()

	close(d.closeCh)
	d.cancel()
	d.listener.Close()
	d.wg.Wait()
	return nil
}

// AddConnection runs a handler for an existing connection, bypassing
// the listener and the duplicate-IP check. Useful for testing with
// net.Pipe().
func (d *Dispatcher) AddConnection(conn net.Conn) {
	key := fmt.Sprintf("conn-%d", d.connSeq.Add(1))
	d.addrMu.Lock()
	d.addrs[key] = true
	d.addrMu.Unlock()
	d.spawn(conn, key)
}

// Addrs returns the remote addresses currently being served.
func (d *Dispatcher) Addrs() []string {
	d.addrMu.Lock()
	defer d.addrMu.Unlock()
	out := make([]string, 0, len(d.addrs))
	for a := range d.addrs {
		out = append(out, a)
	}
	return out
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.closeCh:
			return
		default:
		}

		if d.beacon != nil && (d.broadcastDiscovery || d.queue.HasWork()) {
			if err := d.beacon.Broadcast(); err != nil && d.log != nil {
				d.log.Warnf("discovery broadcast failed: %v", err)
			}
		}

		if dl, ok := d.listener.(deadliner); ok {
			dl.SetDeadline(time.Now().Add(d.acceptPoll))
		}
		conn, err := d.listener.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				d.idle()
				continue
			}
			select {
			case <-d.closeCh:
				return
			default:
			}
			if d.log != nil {
				d.log.Warnf("accept failed: %v", err)
			}
			continue
		}

		d.dispatch(conn)
	}
}

// idle sleeps between passes when nothing is queued. An enqueue cuts
// the wait short so the next broadcast goes out promptly.
func (d *Dispatcher) idle() {
	if d.queue.HasWork() {
		return
	}

	timer := time.NewTimer(d.acceptPoll)
	defer timer.Stop()
	select {
	case <-d.queue.Wake():
	case <-timer.C:
	case <-d.closeCh:
	}
}

func (d *Dispatcher) dispatch(conn net.Conn) {
	ip := remoteIP(conn.RemoteAddr())

	d.addrMu.Lock()
	if d.addrs[ip] {
		d.addrMu.Unlock()
		// One live connection per remote IP.
		if d.log != nil {
			d.log.Debugf("duplicate connection from %s dropped", ip)
		}
		conn.Close()
		return
	}
	d.addrs[ip] = true
	d.addrMu.Unlock()

	d.spawn(conn, ip)
}

func (d *Dispatcher) spawn(conn net.Conn, addrKey string) {
	h := &handler{
		id:          fmt.Sprintf("%s#%d", addrKey, d.connSeq.Add(1)),
		conn:        conn,
		registry:    d.registry,
		keys:        d.keys,
		queue:       d.queue,
		log:         d.connLog,
		readTimeout: d.readTimeout,
		lockTimeout: d.lockTimeout,
		onClose: func() {
			d.addrMu.Lock()
			delete(d.addrs, addrKey)
			d.addrMu.Unlock()
		},
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(d.ctx, d.connTimeout)
		defer cancel()
		h.run(ctx)
	}()
}

// remoteIP strips the port so the one-connection-per-IP rule keys on
// the host alone.
func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
