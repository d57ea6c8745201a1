package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phynode_probe/internal/shared/types"
)

func writeIni(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phynode.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	t.Setenv(LogLevelEnv, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestLoad_OverridesSections(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	path := writeIni(t, `
[probe]
port = 5683
local_port = 0
attempts = 3
timeout_ms = 50
lenient = true
hop_limit = 64

[log]
level = debug

[metrics]
textfile = /tmp/phynode.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5683, cfg.Port)
	assert.Equal(t, 0, cfg.LocalPort)
	assert.Equal(t, 3, cfg.Attempts)
	assert.Equal(t, types.DefaultReceives, cfg.Receives, "unset keys keep their default")
	assert.Equal(t, 50, cfg.TimeoutMs)
	assert.True(t, cfg.Lenient)
	assert.Equal(t, 64, cfg.HopLimit)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "/tmp/phynode.prom", cfg.Textfile)
}

func TestLoad_EnvOverridesLogLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "warn")
	path := writeIni(t, "[log]\nlevel = debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Level)
}

func TestLoad_RejectsInvalidProbeSettings(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	cases := map[string]string{
		"zero attempts": "[probe]\nattempts = 0\n",
		"bad port":      "[probe]\nport = 70000\n",
		"neg timeout":   "[probe]\ntimeout_ms = -1\n",
		"hop limit":     "[probe]\nhop_limit = 300\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeIni(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeIni(t, "[probe\nport = x\n")
	_, err := Load(path)
	assert.Error(t, err)
}
