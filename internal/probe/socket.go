package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/ipv6"
)

// listen binds the shared UDP socket on all interfaces. The firmware sends
// replies to its own fixed port on the sender's address, so the local port
// normally equals the remote one.
func listen(ctx context.Context, localPort int) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: controlReuseAddr}
	conn, err := lc.ListenPacket(ctx, "udp", net.JoinHostPort("", strconv.Itoa(localPort)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind udp port %d: %w", localPort, err)
	}
	return conn, nil
}

// setHopLimit applies the IPv6 unicast and multicast hop limit. It is a
// no-op for IPv4 targets.
func setHopLimit(conn net.PacketConn, target *net.UDPAddr, hops int) error {
	if hops == 0 || target.IP.To4() != nil {
		return nil
	}
	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetHopLimit(hops); err != nil {
		return fmt.Errorf("failed to set hop limit %d: %w", hops, err)
	}
	if target.IP.IsMulticast() {
		if err := pc.SetMulticastHopLimit(hops); err != nil {
			return fmt.Errorf("failed to set multicast hop limit %d: %w", hops, err)
		}
	}
	return nil
}
