package controller

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pion/logging"
	"gopkg.in/yaml.v3"

	"github.com/backkem/klyqa-lan/pkg/cache"
)

// Defaults for the dispatcher and connection handlers.
const (
	// DefaultTCPPort is the data port devices connect to.
	DefaultTCPPort = 3333

	// DefaultUDPPort is the discovery port.
	DefaultUDPPort = 2222

	// DefaultConnectionTimeout bounds one connection handler.
	DefaultConnectionTimeout = 600 * time.Second

	// DefaultAcceptPoll is the listener readability poll interval.
	DefaultAcceptPoll = 500 * time.Millisecond

	// DefaultHandshakeReadTimeout is the per-read deadline during the
	// cleartext handshake.
	DefaultHandshakeReadTimeout = time.Second
)

// Config configures a Controller. The yaml-tagged fields round-trip
// through a config file; runtime dependencies (sockets, storage,
// logging) are injected by the caller.
type Config struct {
	// TCPPort is the data port (default: DefaultTCPPort).
	TCPPort int `yaml:"tcp_port"`

	// UDPPort is the discovery port (default: DefaultUDPPort).
	UDPPort int `yaml:"udp_port"`

	// Interface optionally pins discovery to a named interface.
	Interface string `yaml:"interface"`

	// BroadcastDiscovery broadcasts on every dispatcher pass, not only
	// when work is queued.
	BroadcastDiscovery bool `yaml:"broadcast_discovery"`

	// PassiveReply answers device-originated discovery datagrams.
	PassiveReply bool `yaml:"passive_reply"`

	// DeviceKeyFallback derives per-device keys for units without a
	// provisioned key.
	DeviceKeyFallback bool `yaml:"device_key_fallback"`

	// Keys seeds the AES key table, unit id -> 16-byte hex key. The
	// reserved id "all" applies to every device.
	Keys map[string]string `yaml:"keys"`

	// DataDir is the cache directory. Empty disables the file cache
	// unless Storage is injected directly.
	DataDir string `yaml:"data_dir"`

	// ConnectionTimeout bounds one connection handler
	// (default: DefaultConnectionTimeout).
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`

	// AcceptPoll is the listener poll interval
	// (default: DefaultAcceptPoll).
	AcceptPoll time.Duration `yaml:"accept_poll"`

	// HandshakeReadTimeout is the per-read deadline during the
	// handshake (default: DefaultHandshakeReadTimeout).
	HandshakeReadTimeout time.Duration `yaml:"handshake_read_timeout"`

	// LockTimeout bounds device use-lock acquisition (default: 30 s).
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// Listener is an optional pre-existing TCP listener.
	// If nil, one is bound to TCPPort.
	Listener net.Listener `yaml:"-"`

	// PacketConn is an optional pre-existing UDP socket for the
	// discovery beacon. If nil, one is bound to UDPPort.
	PacketConn net.PacketConn `yaml:"-"`

	// Storage optionally overrides the file cache, e.g. with
	// cache.MemoryStorage in tests.
	Storage cache.Storage `yaml:"-"`

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory `yaml:"-"`
}

// setDefaults fills unset fields in place.
func (c *Config) setDefaults() {
	if c.TCPPort == 0 {
		c.TCPPort = DefaultTCPPort
	}
	if c.UDPPort == 0 {
		c.UDPPort = DefaultUDPPort
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.AcceptPoll <= 0 {
		c.AcceptPoll = DefaultAcceptPoll
	}
	if c.HandshakeReadTimeout <= 0 {
		c.HandshakeReadTimeout = DefaultHandshakeReadTimeout
	}
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("controller: reading config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("controller: parsing config: %w", err)
	}
	return &c, nil
}
