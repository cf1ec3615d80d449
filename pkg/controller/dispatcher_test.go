package controller

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"

	"github.com/backkem/klyqa-lan/pkg/command"
	"github.com/backkem/klyqa-lan/pkg/device"
	"github.com/backkem/klyqa-lan/pkg/keystore"
	"github.com/backkem/klyqa-lan/pkg/message"
)

// stubListener blocks Accept until closed, for dispatcher tests that
// inject connections directly.
type stubListener struct {
	closed chan struct{}
	once   sync.Once
}

func newStubListener() *stubListener {
	return &stubListener{closed: make(chan struct{})}
}

func (l *stubListener) Accept() (net.Conn, error) {
	<-l.closed
	return nil, net.ErrClosed
}

func (l *stubListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *stubListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4zero, Port: DefaultTCPPort}
}

// addrConn overrides the remote address of a pipe end so the
// duplicate-IP rule can be exercised.
type addrConn struct {
	net.Conn
	remote net.Addr
}

func (c *addrConn) RemoteAddr() net.Addr { return c.remote }

func newTestDispatcher(t *testing.T, ks *keystore.Store, q *message.Queue) (*Dispatcher, *device.Registry) {
	t.Helper()
	reg := device.NewRegistry(nil)
	d, err := NewDispatcher(DispatcherConfig{
		Listener:             newStubListener(),
		Registry:             reg,
		Keys:                 ks,
		Queue:                q,
		HandshakeReadTimeout: 20 * time.Millisecond,
		LockTimeout:          time.Second,
	})
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	return d, reg
}

func TestDispatcherServesInjectedConnection(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	ks := keystore.New()
	if err := ks.SetHex(testUnitB, testKeyB); err != nil {
		t.Fatal(err)
	}
	q := message.NewQueue()
	d, reg := newTestDispatcher(t, ks, q)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	msg, err := message.New(testUnitB, []command.Command{command.Request{}}, 5*time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	q.Enqueue(msg)

	host, peer := net.Pipe()
	d.AddConnection(host)

	dc := newDeviceConn(t, peer)
	dc.sendIdentity(testUnitB, testProduct)
	if !dc.handshake(testKeyB) {
		t.Fatal("handshake failed")
	}
	if got := dc.readCommand(); got != `{"type":"request"}` {
		t.Errorf("command = %s", got)
	}
	dc.answer(lightStatus)
	dc.expectClose()

	deadline := time.Now().Add(testDeadline)
	for msg.State() != message.StateAnswered {
		if time.Now().After(deadline) {
			t.Fatalf("message state = %s", msg.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The connection slot is freed once the handler finishes.
	for len(d.Addrs()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("addresses still held: %v", d.Addrs())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if reg.Len() != 1 {
		t.Errorf("registry has %d devices", reg.Len())
	}
	if err := d.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestDispatcherDropsDuplicateIP(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	d, _ := newTestDispatcher(t, keystore.New(), message.NewQueue())
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}

	remote := &net.TCPAddr{IP: net.IPv4(192, 168, 1, 50), Port: 41000}
	host1, peer1 := net.Pipe()
	d.dispatch(&addrConn{Conn: host1, remote: remote})

	remote2 := &net.TCPAddr{IP: net.IPv4(192, 168, 1, 50), Port: 41001}
	host2, peer2 := net.Pipe()
	d.dispatch(&addrConn{Conn: host2, remote: remote2})

	// The duplicate is closed immediately.
	peer2.SetReadDeadline(time.Now().Add(testDeadline))
	if _, err := peer2.Read(make([]byte, 1)); err == nil {
		t.Error("duplicate connection not closed")
	}

	if n := len(d.Addrs()); n != 1 {
		t.Errorf("%d addresses held, want 1", n)
	}

	peer1.Close()
	if err := d.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestDispatcherLifecycle(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	d, _ := newTestDispatcher(t, keystore.New(), message.NewQueue())
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(); err != ErrAlreadyStarted {
		t.Errorf("second Start err = %v, want ErrAlreadyStarted", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := d.Stop(); err != ErrClosed {
		t.Errorf("second Stop err = %v, want ErrClosed", err)
	}
}
