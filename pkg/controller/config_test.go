package controller

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller.yaml")
	body := `tcp_port: 4444
udp_port: 4445
interface: eth0
broadcast_discovery: true
device_key_fallback: true
keys:
  "29daa5a4439969f57934": "53b962431abc7af6ef84b43802994424"
  all: "e901f036a5a119a91ca1f30ef5c207d6"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if c.TCPPort != 4444 || c.UDPPort != 4445 {
		t.Errorf("ports = %d/%d", c.TCPPort, c.UDPPort)
	}
	if c.Interface != "eth0" {
		t.Errorf("interface = %s", c.Interface)
	}
	if !c.BroadcastDiscovery || !c.DeviceKeyFallback {
		t.Error("boolean flags not parsed")
	}
	if c.Keys["29daa5a4439969f57934"] != "53b962431abc7af6ef84b43802994424" {
		t.Errorf("unit key = %s", c.Keys["29daa5a4439969f57934"])
	}
	if c.Keys["all"] != "e901f036a5a119a91ca1f30ef5c207d6" {
		t.Errorf("wildcard key = %s", c.Keys["all"])
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadConfig accepted a missing file")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.setDefaults()

	if c.TCPPort != DefaultTCPPort {
		t.Errorf("tcp port = %d", c.TCPPort)
	}
	if c.UDPPort != DefaultUDPPort {
		t.Errorf("udp port = %d", c.UDPPort)
	}
	if c.ConnectionTimeout != DefaultConnectionTimeout {
		t.Errorf("connection timeout = %v", c.ConnectionTimeout)
	}
	if c.AcceptPoll != DefaultAcceptPoll {
		t.Errorf("accept poll = %v", c.AcceptPoll)
	}
	if c.HandshakeReadTimeout != DefaultHandshakeReadTimeout {
		t.Errorf("handshake read timeout = %v", c.HandshakeReadTimeout)
	}
}
