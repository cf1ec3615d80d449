package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/transport/v3/test"
)

// mockResolver streams a fixed set of entries, then closes the channel
// the way the zeroconf client does on context cancellation.
type mockResolver struct {
	entries []*zeroconf.ServiceEntry
}

func (m *mockResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	go func() {
		defer close(entries)
		for _, e := range m.entries {
			select {
			case entries <- e:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return nil
}

type mockResolverFactory struct {
	resolver *mockResolver
}

func (m *mockResolverFactory) New() (MDNSResolver, error) {
	return m.resolver, nil
}

func TestBrowserStreamsEntries(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	entry := &zeroconf.ServiceEntry{
		HostName: "klyqa-29daa5a4439969f57934.local.",
		Port:     DataPort,
		AddrIPv4: []net.IP{net.IPv4(192, 168, 1, 50)},
		Text:     []string{"product=@klyqa.lighting.rgb-cw-ww.e27"},
	}
	entry.Instance = "klyqa-29daa5a4439969f57934"

	b := NewBrowser(BrowserConfig{
		ResolverFactory: &mockResolverFactory{resolver: &mockResolver{
			entries: []*zeroconf.ServiceEntry{entry},
		}},
	})

	got := make(chan Entry, 1)
	if err := b.Start(context.Background(), func(e Entry) {
		got <- e
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case e := <-got:
		if e.Instance != "klyqa-29daa5a4439969f57934" {
			t.Errorf("instance = %s", e.Instance)
		}
		if e.Port != DataPort {
			t.Errorf("port = %d, want %d", e.Port, DataPort)
		}
		if len(e.Addrs) != 1 || !e.Addrs[0].Equal(net.IPv4(192, 168, 1, 50)) {
			t.Errorf("addrs = %v", e.Addrs)
		}
	case <-time.After(time.Second):
		t.Fatal("no entry delivered")
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

// failingResolver rejects Browse without touching the entries channel,
// the way the zeroconf client fails before its listener goroutine runs.
type failingResolver struct {
	err error
}

func (f *failingResolver) Browse(context.Context, string, string, chan<- *zeroconf.ServiceEntry) error {
	return f.err
}

type failingResolverFactory struct {
	err error
}

func (f *failingResolverFactory) New() (MDNSResolver, error) {
	return &failingResolver{err: f.err}, nil
}

func TestBrowserBrowseFailure(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	browseErr := errors.New("no multicast interfaces")
	b := NewBrowser(BrowserConfig{
		ResolverFactory: &failingResolverFactory{err: browseErr},
	})

	done := make(chan error, 1)
	go func() {
		done <- b.Start(context.Background(), func(Entry) {})
	}()

	select {
	case err := <-done:
		if err != browseErr {
			t.Errorf("Start err = %v, want %v", err, browseErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Browse failure")
	}

	// The failure must not consume the single start slot.
	if err := b.Start(context.Background(), func(Entry) {}); err != browseErr {
		t.Errorf("retry err = %v, want %v", err, browseErr)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestBrowserLifecycle(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	b := NewBrowser(BrowserConfig{
		ResolverFactory: &mockResolverFactory{resolver: &mockResolver{}},
	})

	if err := b.Start(context.Background(), func(Entry) {}); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background(), func(Entry) {}); err != ErrAlreadyStarted {
		t.Errorf("second Start err = %v, want ErrAlreadyStarted", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := b.Stop(); err != ErrClosed {
		t.Errorf("second Stop err = %v, want ErrClosed", err)
	}
}

func TestBrowserDefaults(t *testing.T) {
	b := NewBrowser(BrowserConfig{})
	if b.service != ServiceKlyqa {
		t.Errorf("service = %s, want %s", b.service, ServiceKlyqa)
	}
	if b.domain != DefaultDomain {
		t.Errorf("domain = %s, want %s", b.domain, DefaultDomain)
	}
}
