package discovery

import (
	"context"
	"fmt"
	"net"
)

// listenBroadcast binds a UDP socket that may both receive discovery
// datagrams and send to the limited broadcast address. Reuse-addr is
// set so the beacon can share the port with other local controllers.
func listenBroadcast(port int, iface string) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: controlBroadcast(iface),
	}
	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("discovery: binding udp port %d: %w", port, err)
	}
	return conn, nil
}
