package shared

import (
	"net"
	"sync/atomic"
)

// CountedPacketConn wraps a net.PacketConn and counts datagrams and bytes in
// both directions.
type CountedPacketConn struct {
	net.PacketConn
	txPackets atomic.Uint64
	rxPackets atomic.Uint64
	txBytes   atomic.Uint64
	rxBytes   atomic.Uint64
}

// NewCountedPacketConn creates a new CountedPacketConn around conn.
func NewCountedPacketConn(conn net.PacketConn) *CountedPacketConn {
	return &CountedPacketConn{PacketConn: conn}
}

// ReadFrom reads one datagram and counts it.
func (c *CountedPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, addr, err := c.PacketConn.ReadFrom(b)
	if err == nil {
		c.rxPackets.Add(1)
		c.rxBytes.Add(uint64(n))
	}
	return n, addr, err
}

// WriteTo sends one datagram and counts it.
func (c *CountedPacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	n, err := c.PacketConn.WriteTo(b, addr)
	if err == nil {
		c.txPackets.Add(1)
		c.txBytes.Add(uint64(n))
	}
	return n, err
}

// Stats returns packets and bytes sent and received so far.
func (c *CountedPacketConn) Stats() (txPackets, rxPackets, txBytes, rxBytes uint64) {
	return c.txPackets.Load(), c.rxPackets.Load(), c.txBytes.Load(), c.rxBytes.Load()
}
