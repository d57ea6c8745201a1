package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeMetrics(t *testing.T) {
	m := NewProbeMetrics()

	m.ObserveAttempt()
	m.ObserveAttempt()
	m.ObserveDatagram()
	m.ObserveProbe("ok", 20*time.Millisecond)
	m.ObserveProbe("exhausted", 7*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.datagrams))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues("exhausted")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestProbeMetrics_WriteTextfile(t *testing.T) {
	m := NewProbeMetrics()
	m.ObserveProbe("ok", time.Millisecond)

	path := filepath.Join(t.TempDir(), "phynode.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `phynode_probe_total{result="ok"} 1`)
	assert.Contains(t, string(raw), "phynode_probe_duration_seconds_count 1")
}

func TestProbeMetrics_WriteTextfileBadDir(t *testing.T) {
	m := NewProbeMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "phynode.prom"))
	assert.Error(t, err)
}
