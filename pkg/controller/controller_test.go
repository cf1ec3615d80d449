package controller

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"

	"github.com/backkem/klyqa-lan/pkg/cache"
	"github.com/backkem/klyqa-lan/pkg/command"
	"github.com/backkem/klyqa-lan/pkg/message"
)

// newLoopbackController starts a controller on loopback sockets with
// the key for testUnitB provisioned through the storage cache.
func newLoopbackController(t *testing.T) (*Controller, net.Addr) {
	t.Helper()

	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		l.Close()
		t.Fatal(err)
	}

	storage := cache.NewMemoryStorage()
	if err := storage.SaveKeys(map[string]string{testUnitB: testKeyB}); err != nil {
		t.Fatal(err)
	}

	c, err := New(Config{
		Listener:             l,
		PacketConn:           pc,
		Storage:              storage,
		AcceptPoll:           50 * time.Millisecond,
		HandshakeReadTimeout: 20 * time.Millisecond,
		LockTimeout:          time.Second,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return c, l.Addr()
}

func waitForWork(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.Now().Add(testDeadline)
	for !c.queue.HasWork() {
		if time.Now().After(deadline) {
			t.Fatal("message never enqueued")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestControllerSendMessageEndToEnd(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	c, addr := newLoopbackController(t)

	type result struct {
		msg *message.Message
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
		defer cancel()
		m, err := c.SendMessage(ctx, []command.Command{command.Request{}}, testUnitB, 3*time.Second)
		resCh <- result{m, err}
	}()

	waitForWork(t, c)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	dc := newDeviceConn(t, conn)
	dc.sendIdentity(testUnitB, testProduct)
	if !dc.handshake(testKeyB) {
		t.Fatal("handshake failed")
	}
	if got := dc.readCommand(); got != `{"type":"request"}` {
		t.Errorf("command = %s", got)
	}
	dc.answer(lightStatus)
	dc.expectClose()

	res := <-resCh
	if res.err != nil {
		t.Fatalf("SendMessage failed: %v", res.err)
	}
	if res.msg.State() != message.StateAnswered {
		t.Errorf("state = %s, want ANSWERED", res.msg.State())
	}
	if res.msg.AnswerJSON() == nil {
		t.Error("no parsed answer")
	}

	if _, err := c.Registry().Get(testUnitB); err != nil {
		t.Errorf("device not registered: %v", err)
	}

	if err := c.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestControllerTTLExpiry(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	c, _ := newLoopbackController(t)

	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()

	start := time.Now()
	msg, err := c.SendMessage(ctx, []command.Command{command.Ping{}}, "unreachable-unit", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("completed after %v, before the TTL", elapsed)
	}
	if msg.State() != message.StateUnsent {
		t.Errorf("state = %s, want UNSENT", msg.State())
	}
	if msg.Answer() != nil {
		t.Error("expired message carries an answer")
	}
	if c.queue.Len() != 0 {
		t.Errorf("queue len = %d after expiry", c.queue.Len())
	}

	if err := c.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestControllerShutdownFailsPending(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	c, _ := newLoopbackController(t)

	done := make(chan *message.Message, 1)
	go func() {
		m, _ := c.SendMessage(context.Background(), []command.Command{command.Ping{}}, testUnitB, time.Minute)
		done <- m
	}()
	waitForWork(t, c)

	if err := c.Shutdown(); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-done:
		if m.Answer() != nil {
			t.Error("failed message carries an answer")
		}
	case <-time.After(testDeadline):
		t.Fatal("SendMessage still blocked after Shutdown")
	}
}

func TestControllerLifecycleErrors(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.SendMessage(context.Background(), []command.Command{command.Ping{}}, testUnitA, time.Second); err != ErrNotStarted {
		t.Errorf("SendMessage before Start err = %v, want ErrNotStarted", err)
	}
	if err := c.Shutdown(); err != nil {
		t.Errorf("Shutdown of idle controller err = %v", err)
	}
	if _, err := c.SendMessage(context.Background(), []command.Command{command.Ping{}}, testUnitA, time.Second); err != ErrClosed {
		t.Errorf("SendMessage after Shutdown err = %v, want ErrClosed", err)
	}
}

func TestControllerEmptyTarget(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	c, _ := newLoopbackController(t)
	defer c.Shutdown()

	if _, err := c.SendMessage(context.Background(), []command.Command{command.Ping{}}, "", time.Second); err != ErrEmptyTarget {
		t.Errorf("err = %v, want ErrEmptyTarget", err)
	}
}

func TestControllerPersistsKeysOnShutdown(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	c, _ := newLoopbackController(t)
	if err := c.Keys().SetHex(testUnitA, testKeyA); err != nil {
		t.Fatal(err)
	}
	if err := c.Shutdown(); err != nil {
		t.Fatal(err)
	}

	saved, err := c.storage.LoadKeys()
	if err != nil {
		t.Fatal(err)
	}
	if saved[testUnitA] != testKeyA {
		t.Errorf("key for %s not persisted", testUnitA)
	}
	if saved[testUnitB] != testKeyB {
		t.Errorf("key for %s lost", testUnitB)
	}
}
