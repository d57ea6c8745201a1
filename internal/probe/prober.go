// Package probe implements the command/response prober: one UDP socket and
// a bounded send/scan/retry loop per command.
package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"phynode_probe/internal/shared"
	"phynode_probe/internal/shared/logger"
	"phynode_probe/internal/shared/types"
)

// Probe results reported to the Recorder.
const (
	ResultOK        = "ok"
	ResultExhausted = "exhausted"
	ResultError     = "error"
)

// Recorder receives per-probe counters. See internal/metrics.
type Recorder interface {
	ObserveAttempt()
	ObserveDatagram()
	ObserveProbe(result string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt()                    {}
func (nopRecorder) ObserveDatagram()                   {}
func (nopRecorder) ObserveProbe(string, time.Duration) {}

// Option customizes a Prober.
type Option func(*Prober)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Prober) {
		if r != nil {
			p.rec = r
		}
	}
}

// Prober owns the socket shared by every probe of a run.
type Prober struct {
	cfg    types.ProbeConf
	conn   *shared.CountedPacketConn
	target *net.UDPAddr
	rec    Recorder
	log    zerolog.Logger
	buf    []byte
}

// New resolves host on cfg.Port, binds the local socket and returns a Prober.
func New(ctx context.Context, host string, cfg types.ProbeConf, opts ...Option) (*Prober, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	target, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target %q: %w", host, err)
	}

	conn, err := listen(ctx, cfg.LocalPort)
	if err != nil {
		return nil, err
	}
	if err := setHopLimit(conn, target, cfg.HopLimit); err != nil {
		conn.Close()
		return nil, err
	}

	p := &Prober{
		cfg:    cfg,
		conn:   shared.NewCountedPacketConn(conn),
		target: target,
		rec:    nopRecorder{},
		buf:    make([]byte, cfg.BufferSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.WithComponent("prober").With().
		Str("target", target.String()).
		Str("local", conn.LocalAddr().String()).
		Logger()
	p.log.Debug().Int("attempts", cfg.Attempts).Int("receives", cfg.Receives).
		Dur("timeout", cfg.Timeout()).Bool("lenient", cfg.Lenient).Msg("Prober ready")
	return p, nil
}

// Target returns the resolved node address.
func (p *Prober) Target() *net.UDPAddr {
	return p.target
}

// LocalAddr returns the bound socket address.
func (p *Prober) LocalAddr() net.Addr {
	return p.conn.LocalAddr()
}

// Stats returns datagram and byte counters for the shared socket.
func (p *Prober) Stats() (txPackets, rxPackets, txBytes, rxBytes uint64) {
	return p.conn.Stats()
}

// Close releases the socket.
func (p *Prober) Close() error {
	return p.conn.Close()
}

// Probe sends command and waits for a datagram containing expect. It
// retries the whole send up to cfg.Attempts times and returns the first
// matching payload of the successful attempt.
//
// Only transient I/O failures are retried. Exhausting the budget returns a
// *CommunicationError. In lenient mode an attempt that reads cfg.Receives
// datagrams without a match returns the last payload instead.
func (p *Prober) Probe(ctx context.Context, command, expect string) (string, error) {
	start := time.Now()
	log := p.log.With().Str("command", command).Str("expect", expect).Logger()

	var lastErr error
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			p.rec.ObserveProbe(ResultError, time.Since(start))
			return "", fmt.Errorf("probe %q: %w", command, err)
		}
		p.rec.ObserveAttempt()

		payload, matched, err := p.attempt(ctx, command, expect)
		switch {
		case err != nil && !isTransient(err):
			p.rec.ObserveProbe(ResultError, time.Since(start))
			return "", fmt.Errorf("probe %q: %w", command, err)
		case err != nil:
			lastErr = err
			log.Debug().Int("attempt", attempt).Err(err).Msg("Attempt failed, retrying")
			continue
		case matched:
			log.Debug().Int("attempt", attempt).Str("payload", payload).Msg("Probe matched")
			p.rec.ObserveProbe(ResultOK, time.Since(start))
			return payload, nil
		case p.cfg.Lenient:
			log.Warn().Int("attempt", attempt).Str("payload", payload).
				Msg("Receive ceiling reached without a match, returning last payload")
			p.rec.ObserveProbe(ResultOK, time.Since(start))
			return payload, nil
		default:
			lastErr = fmt.Errorf("%w after %d datagrams", errNoMatch, p.cfg.Receives)
			log.Debug().Int("attempt", attempt).Str("last_payload", payload).Msg("No match in attempt")
		}
	}

	p.rec.ObserveProbe(ResultExhausted, time.Since(start))
	return "", &CommunicationError{
		Command:  command,
		Expect:   expect,
		Attempts: p.cfg.Attempts,
		Last:     lastErr,
	}
}

// attempt sends command once and scans up to cfg.Receives datagrams.
func (p *Prober) attempt(ctx context.Context, command, expect string) (payload string, matched bool, err error) {
	if _, err := p.conn.WriteTo([]byte(command), p.target); err != nil {
		return "", false, err
	}

	for i := 0; i < p.cfg.Receives; i++ {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		if err := p.conn.SetReadDeadline(time.Now().Add(p.cfg.Timeout())); err != nil {
			return "", false, err
		}
		n, from, err := p.conn.ReadFrom(p.buf)
		if err != nil {
			return "", false, err
		}
		p.rec.ObserveDatagram()
		payload = string(p.buf[:n])
		p.log.Trace().Stringer("from", from).Str("payload", payload).Msg("Datagram received")
		if strings.Contains(payload, expect) {
			return payload, true, nil
		}
	}
	return payload, false, nil
}
