package types

import (
	"fmt"
	"time"
)

const (
	// DefaultPort is the UDP port the phyNODE firmware listens and replies on.
	DefaultPort = 23025

	DefaultAttempts   = 10
	DefaultReceives   = 100
	DefaultTimeoutMs  = 700
	DefaultBufferSize = 1024
)

// ProbeConf holds the prober's socket and retry settings.
type ProbeConf struct {
	Port       int  `ini:"port"`       // remote port on the node
	LocalPort  int  `ini:"local_port"` // 0 binds an ephemeral port
	Attempts   int  `ini:"attempts"`
	Receives   int  `ini:"receives"`
	TimeoutMs  int  `ini:"timeout_ms"`
	BufferSize int  `ini:"buffer_size"`
	Lenient    bool `ini:"lenient"`   // return the last payload when the receive ceiling is hit without a match
	HopLimit   int  `ini:"hop_limit"` // IPv6 hop limit, 0 keeps the kernel default
}

// Timeout returns the per-read deadline as a duration.
func (c ProbeConf) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Validate rejects settings the prober cannot run with.
func (c ProbeConf) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("probe.port out of range: %d", c.Port)
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return fmt.Errorf("probe.local_port out of range: %d", c.LocalPort)
	}
	if c.Attempts <= 0 {
		return fmt.Errorf("probe.attempts must be positive, got %d", c.Attempts)
	}
	if c.Receives <= 0 {
		return fmt.Errorf("probe.receives must be positive, got %d", c.Receives)
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("probe.timeout_ms must be positive, got %d", c.TimeoutMs)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("probe.buffer_size must be positive, got %d", c.BufferSize)
	}
	if c.HopLimit < 0 || c.HopLimit > 255 {
		return fmt.Errorf("probe.hop_limit out of range: %d", c.HopLimit)
	}
	return nil
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// MetricsConf controls the Prometheus textfile written at exit.
type MetricsConf struct {
	Textfile string `ini:"textfile"`
}

// Config is the tester's configuration, loaded from phynode.ini.
type Config struct {
	ProbeConf   `ini:"probe"`
	LogConf     `ini:"log"`
	MetricsConf `ini:"metrics"`
}

// DefaultConfig returns the stock bench settings: port 23025, 10 attempts of up to 100 reads at 700ms each.
func DefaultConfig() *Config {
	return &Config{
		ProbeConf: ProbeConf{
			Port:       DefaultPort,
			LocalPort:  DefaultPort,
			Attempts:   DefaultAttempts,
			Receives:   DefaultReceives,
			TimeoutMs:  DefaultTimeoutMs,
			BufferSize: DefaultBufferSize,
		},
		LogConf: LogConf{Level: "info"},
	}
}
