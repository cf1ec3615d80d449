// Package controller wires the QCX local protocol together: the
// discovery beacon, the connection dispatcher, the per-connection
// handshake and command exchange, and the TTL sweeper behind a small
// façade.
//
// Devices are passive peers: the controller broadcasts a discovery
// datagram and devices connect back over TCP. Work is queued as
// messages; a connection from a device drains that device's queue.
package controller

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/klyqa-lan/pkg/cache"
	"github.com/backkem/klyqa-lan/pkg/command"
	"github.com/backkem/klyqa-lan/pkg/device"
	"github.com/backkem/klyqa-lan/pkg/discovery"
	"github.com/backkem/klyqa-lan/pkg/keystore"
	"github.com/backkem/klyqa-lan/pkg/message"
)

// Controller is the public entry point.
type Controller struct {
	config  Config
	log     logging.LeveledLogger
	storage cache.Storage

	registry *device.Registry
	keys     *keystore.Store
	queue    *message.Queue

	beacon     *discovery.Beacon
	dispatcher *Dispatcher
	sweeper    *message.Sweeper

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a controller. Cached keys and device configs are loaded
// from storage; keys from the config override cached ones.
func New(config Config) (*Controller, error) {
	config.setDefaults()

	c := &Controller{
		config:   config,
		registry: device.NewRegistry(config.LoggerFactory),
		keys:     keystore.New(),
		queue:    message.NewQueue(),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("controller")
	}
	if config.DeviceKeyFallback {
		c.keys.EnableDeviceKeyFallback()
	}

	storage := config.Storage
	if storage == nil && config.DataDir != "" {
		var err error
		storage, err = cache.NewDirStorage(config.DataDir)
		if err != nil {
			return nil, err
		}
	}
	c.storage = storage

	if storage != nil {
		keys, err := storage.LoadKeys()
		if err != nil {
			return nil, err
		}
		for unitID, hexKey := range keys {
			if err := c.keys.SetHex(unitID, hexKey); err != nil {
				return nil, fmt.Errorf("controller: cached key for %s: %w", unitID, err)
			}
		}

		configs, err := storage.LoadConfigs()
		if err != nil {
			return nil, err
		}
		for productID, cfg := range configs {
			c.registry.SetConfig(productID, cfg)
		}
	}

	for unitID, hexKey := range config.Keys {
		if err := c.keys.SetHex(unitID, hexKey); err != nil {
			return nil, fmt.Errorf("controller: key for %s: %w", unitID, err)
		}
	}

	return c, nil
}

// Start binds the sockets and launches the dispatcher and the TTL
// sweeper.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}

	listener := c.config.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", c.config.TCPPort))
		if err != nil {
			return fmt.Errorf("controller: binding tcp port %d: %w", c.config.TCPPort, err)
		}
	}

	beacon, err := discovery.NewBeacon(discovery.BeaconConfig{
		Conn:          c.config.PacketConn,
		Port:          c.config.UDPPort,
		Interface:     c.config.Interface,
		PassiveReply:  c.config.PassiveReply,
		LoggerFactory: c.config.LoggerFactory,
	})
	if err != nil {
		listener.Close()
		return err
	}
	if err := beacon.Start(); err != nil {
		listener.Close()
		return err
	}

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Listener:             listener,
		Beacon:               beacon,
		Registry:             c.registry,
		Keys:                 c.keys,
		Queue:                c.queue,
		BroadcastDiscovery:   c.config.BroadcastDiscovery,
		AcceptPoll:           c.config.AcceptPoll,
		ConnectionTimeout:    c.config.ConnectionTimeout,
		HandshakeReadTimeout: c.config.HandshakeReadTimeout,
		LockTimeout:          c.config.LockTimeout,
		LoggerFactory:        c.config.LoggerFactory,
	})
	if err != nil {
		beacon.Stop()
		listener.Close()
		return err
	}

	sweeper := message.NewSweeper(message.SweeperConfig{
		Queue:         c.queue,
		LoggerFactory: c.config.LoggerFactory,
	})

	if err := dispatcher.Start(); err != nil {
		beacon.Stop()
		listener.Close()
		return err
	}
	if err := sweeper.Start(); err != nil {
		dispatcher.Stop()
		beacon.Stop()
		return err
	}

	c.beacon = beacon
	c.dispatcher = dispatcher
	c.sweeper = sweeper
	c.started = true

	if c.log != nil {
		c.log.Infof("controller up, tcp %s", listener.Addr())
	}
	return nil
}

// SendMessage queues commands for a target unit id (or "all"), triggers
// a discovery broadcast and waits for the message to reach a terminal
// condition: answered, or expired after ttl with an empty answer.
//
// The returned message is also handed back when ctx ends first, along
// with the context error, so the caller can inspect partial state.
func (c *Controller) SendMessage(ctx context.Context, commands []command.Command, target string, ttl time.Duration) (*message.Message, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if !c.started {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	beacon := c.beacon
	c.mu.Unlock()

	if target == "" {
		return nil, ErrEmptyTarget
	}
	if target != message.BroadcastTarget {
		target = device.Slugify(target)
	}

	done := make(chan *message.Message, 1)
	msg, err := message.New(target, commands, ttl, func(m *message.Message) {
		done <- m
	})
	if err != nil {
		return nil, err
	}

	c.queue.Enqueue(msg)
	if err := beacon.Broadcast(); err != nil && c.log != nil {
		c.log.Warnf("discovery broadcast failed: %v", err)
	}

	select {
	case m := <-done:
		return m, nil
	case <-ctx.Done():
		c.queue.Remove(msg)
		return msg, ctx.Err()
	}
}

// Discover broadcast-pings every reachable device. Devices that answer
// within ttl end up in the registry; the first answer completes the
// returned message, later ones still update device state.
func (c *Controller) Discover(ctx context.Context, ttl time.Duration) (*message.Message, error) {
	return c.SendMessage(ctx, []command.Command{&command.Ping{}}, message.BroadcastTarget, ttl)
}

// Registry returns the device registry.
func (c *Controller) Registry() *device.Registry {
	return c.registry
}

// Keys returns the AES key table.
func (c *Controller) Keys() *keystore.Store {
	return c.keys
}

// Shutdown stops the dispatcher, the sweeper and the beacon, cancels
// in-flight connections and fails pending messages. Provisioned keys
// are persisted when storage is configured.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	if !started {
		return nil
	}

	c.dispatcher.Stop()
	c.sweeper.Stop()
	c.beacon.Stop()

	for _, m := range c.queue.Clear() {
		m.FireCallback()
	}

	if c.storage != nil && c.keys.Len() > 0 {
		if err := c.storage.SaveKeys(c.keys.Export()); err != nil && c.log != nil {
			c.log.Warnf("persisting keys failed: %v", err)
		}
	}

	if c.log != nil {
		c.log.Info("controller down")
	}
	return nil
}
