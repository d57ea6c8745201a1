// Package simnode is a stand-in for the phyNODE firmware's UDP server. It
// answers the same text commands with canned sensor readings and drives
// virtual LEDs, so the tester can be exercised without hardware.
package simnode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"phynode_probe/internal/shared/logger"
)

// Readings are the sensor values reported by get: commands.
type Readings struct {
	Temp, Hum  int
	Pressure   uint32
	Accel, Mag [3]int16
	TAmb, TObj float64 // reported as value*100, truncated
	Color      Color
}

// Color is a tcs37727 sample.
type Color struct {
	R, G, B, C, Lux, CT int
}

// DefaultReadings are plausible bench values.
func DefaultReadings() Readings {
	return Readings{
		Temp:     2215,
		Hum:      4102,
		Pressure: 101325,
		Accel:    [3]int16{12, -8, 1024},
		Mag:      [3]int16{-210, 77, 315},
		TAmb:     22.5,
		TObj:     24.75,
		Color:    Color{R: 120, G: 140, B: 90, C: 400, Lux: 210, CT: 4100},
	}
}

// Options tune how the node behaves on the wire.
type Options struct {
	Readings Readings
	// ReplyPort sends replies to this fixed port on the sender's IP, the way
	// the firmware does. Zero replies to the sender's source address.
	ReplyPort int
	// DropFirst ignores the first N datagrams.
	DropFirst int
	// Noise sends N non-matching datagrams ahead of every reply.
	Noise int
	// Silent never replies.
	Silent bool
}

// LED identifies one of the node's three LEDs.
type LED int

const (
	LEDRed LED = iota
	LEDGreen
	LEDBlue
)

var ledKeys = [...]struct {
	key, name string
}{
	LEDRed:   {"rled", "R"},
	LEDGreen: {"gled", "G"},
	LEDBlue:  {"bled", "B"},
}

// Node is a running simulated phyNODE.
type Node struct {
	conn     net.PacketConn
	opts     Options
	log      zerolog.Logger
	received atomic.Int64

	mu   sync.Mutex
	leds [3]bool

	closeOnce sync.Once
	closed    atomic.Bool
}

// Listen binds addr (e.g. "[::]:23025") and returns a node ready to Serve.
func Listen(ctx context.Context, addr string, opts Options) (*Node, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("simnode: failed to listen on %s: %w", addr, err)
	}
	return &Node{
		conn: conn,
		opts: opts,
		log:  logger.WithComponent("simnode").With().Str("listen", conn.LocalAddr().String()).Logger(),
	}, nil
}

// Addr returns the bound address.
func (n *Node) Addr() *net.UDPAddr {
	return n.conn.LocalAddr().(*net.UDPAddr)
}

// Received returns the number of datagrams read so far, dropped ones included.
func (n *Node) Received() int {
	return int(n.received.Load())
}

// LED reports whether the given LED is on.
func (n *Node) LED(l LED) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.leds[l]
}

// Close stops Serve and releases the socket.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.closed.Store(true)
		err = n.conn.Close()
	})
	return err
}

// Serve answers datagrams until ctx is cancelled or Close is called.
func (n *Node) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { n.Close() })
	defer stop()

	n.log.Info().Msg("Simulated node serving")
	buf := make([]byte, 128)
	for {
		size, from, err := n.conn.ReadFrom(buf)
		if err != nil {
			if n.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			n.log.Warn().Err(err).Msg("Read failed")
			continue
		}
		seq := n.received.Add(1)
		if seq <= int64(n.opts.DropFirst) || n.opts.Silent {
			n.log.Debug().Int64("seq", seq).Msg("Dropping datagram")
			continue
		}

		reply, ok := n.Reply(string(buf[:size]))
		if !ok {
			continue
		}
		n.send(reply, n.replyAddr(from))
	}
}

func (n *Node) replyAddr(from net.Addr) net.Addr {
	udp, ok := from.(*net.UDPAddr)
	if !ok || n.opts.ReplyPort == 0 {
		return from
	}
	return &net.UDPAddr{IP: udp.IP, Port: n.opts.ReplyPort, Zone: udp.Zone}
}

func (n *Node) send(reply string, to net.Addr) {
	for i := 0; i < n.opts.Noise; i++ {
		if _, err := n.conn.WriteTo([]byte("busy\x00"), to); err != nil {
			n.log.Warn().Err(err).Msg("Noise write failed")
			return
		}
	}
	// The firmware sends strlen+1 bytes, so replies carry the NUL terminator.
	if _, err := n.conn.WriteTo([]byte(reply+"\x00"), to); err != nil {
		n.log.Warn().Err(err).Stringer("to", to).Msg("Reply write failed")
	}
}

// Reply returns the node's answer to one command, or false when the node
// would stay silent. Matching is by substring, in the firmware's order.
func (n *Node) Reply(cmd string) (string, bool) {
	r := n.opts.Readings
	switch {
	case strings.Contains(cmd, "get:hdc1000"):
		return fmt.Sprintf("temp:%d,rh:%d\n", r.Temp, r.Hum), true
	case strings.Contains(cmd, "get:mpl3115a2"):
		return fmt.Sprintf("pressure:%d\n", r.Pressure), true
	case strings.Contains(cmd, "get:mma8652"):
		return fmt.Sprintf("x:%d,y:%d,z:%d\n", r.Accel[0], r.Accel[1], r.Accel[2]), true
	case strings.Contains(cmd, "get:mag3110"):
		return fmt.Sprintf("x:%d,y:%d,z:%d\n", r.Mag[0], r.Mag[1], r.Mag[2]), true
	case strings.Contains(cmd, "get:tmp006"):
		return fmt.Sprintf("tamb:%d,tobj:%d\n", int(r.TAmb*100), int(r.TObj*100)), true
	case strings.Contains(cmd, "get:tcs37727"):
		c := r.Color
		return fmt.Sprintf("r:%d,g:%d,b:%d,c:%d,lux:%d,ct:%d\n", c.R, c.G, c.B, c.C, c.Lux, c.CT), true
	}

	for led, k := range ledKeys {
		prefix := "set:" + k.key + ",val:"
		if !strings.Contains(cmd, prefix) {
			continue
		}
		on := !strings.Contains(cmd, prefix+"0")
		n.mu.Lock()
		n.leds[led] = on
		n.mu.Unlock()
		if on {
			return "LED_" + k.name + "_ON\n", true
		}
		return "LED_" + k.name + "_OFF\n", true
	}
	return "", false
}
