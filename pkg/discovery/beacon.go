// Package discovery finds QCX devices on the local network.
//
// The primary mechanism is a UDP beacon: the host broadcasts the ASCII
// string "QCX-SYN" and devices respond by opening a TCP connection to
// the host's data port. Devices may also broadcast "QCX-SYN" on their
// own (passive host mode); the beacon then answers "QCX-ACK" twice.
//
// An optional mDNS browser complements the beacon for devices that
// advertise the _klyqa._tcp service.
package discovery

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// Protocol constants.
const (
	// DiscoveryPort is the UDP port the beacon binds and broadcasts to.
	DiscoveryPort = 2222

	// DataPort is the TCP port devices connect back to.
	DataPort = 3333

	// SynPayload is the discovery datagram.
	SynPayload = "QCX-SYN"

	// AckPayload answers a device-originated SYN.
	AckPayload = "QCX-ACK"
)

// maxDatagramSize bounds beacon reads; discovery datagrams are tiny.
const maxDatagramSize = 64

// readErrorBackoff paces the receive loop when the socket keeps
// returning errors without being closed.
const readErrorBackoff = time.Second

// DatagramHandler is called for every datagram the beacon receives.
type DatagramHandler func(data []byte, addr net.Addr)

// BeaconConfig configures the UDP discovery beacon.
type BeaconConfig struct {
	// Conn is an optional pre-existing PacketConn to use.
	// If nil, a broadcast-capable socket is bound to Port.
	Conn net.PacketConn

	// Port is the UDP port (default: DiscoveryPort).
	Port int

	// Interface optionally pins the socket to a named interface.
	Interface string

	// PassiveReply answers device-originated SYNs with AckPayload,
	// sent twice.
	PassiveReply bool

	// DatagramHandler is called for each received datagram. Optional.
	DatagramHandler DatagramHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Beacon is the UDP discovery service.
type Beacon struct {
	conn         net.PacketConn
	port         int
	passiveReply bool
	handler      DatagramHandler
	closeCh      chan struct{}
	wg           sync.WaitGroup
	log          logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewBeacon creates the beacon and binds its socket.
func NewBeacon(config BeaconConfig) (*Beacon, error) {
	b := &Beacon{
		conn:         config.Conn,
		port:         config.Port,
		passiveReply: config.PassiveReply,
		handler:      config.DatagramHandler,
		closeCh:      make(chan struct{}),
	}
	if b.port == 0 {
		b.port = DiscoveryPort
	}
	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("discovery-udp")
	}

	if b.conn == nil {
		conn, err := listenBroadcast(b.port, config.Interface)
		if err != nil {
			return nil, err
		}
		b.conn = conn
	}

	return b, nil
}

// Start begins the receive loop.
func (b *Beacon) Start() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.mu.Unlock()

	if b.log != nil {
		b.log.Infof("starting discovery beacon on %s", b.conn.LocalAddr())
	}

	b.wg.Add(1)
	go b.readLoop()
	return nil
}

// Stop closes the socket and waits for the receive loop to exit.
func (b *Beacon) Stop() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.closed = true
	b.mu.Unlock()

	close(b.closeCh)

	// Unblock any pending read
	b.conn.SetReadDeadline(time.Now())
	b.conn.Close()
	b.wg.Wait()
	return nil
}

// Broadcast sends one SynPayload datagram to the limited broadcast
// address. Devices hearing it connect back over TCP.
func (b *Beacon) Broadcast() error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	b.mu.RUnlock()

	addr := &net.UDPAddr{IP: net.IPv4bcast, Port: b.port}
	if b.log != nil {
		b.log.Debugf("broadcasting %s to %v", SynPayload, addr)
	}
	_, err := b.conn.WriteTo([]byte(SynPayload), addr)
	return err
}

// LocalAddr returns the bound address.
func (b *Beacon) LocalAddr() net.Addr {
	return b.conn.LocalAddr()
}

func (b *Beacon) readLoop() {
	defer b.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-b.closeCh:
			return
		default:
		}

		n, addr, err := b.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-b.closeCh:
				return
			default:
			}
			if b.log != nil {
				b.log.Warnf("beacon read error: %v", err)
			}
			// Pace a broken-but-open socket instead of spinning.
			select {
			case <-b.closeCh:
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if string(data) == SynPayload && b.passiveReply {
			// Passive host mode: a device announced itself. Ack twice;
			// discovery datagrams are fire-and-forget.
			for i := 0; i < 2; i++ {
				if _, err := b.conn.WriteTo([]byte(AckPayload), addr); err != nil {
					if b.log != nil {
						b.log.Warnf("ack to %v failed: %v", addr, err)
					}
					break
				}
			}
		}

		if b.handler != nil {
			b.handler(data, addr)
		}
	}
}
