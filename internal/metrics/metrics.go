package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProbeMetrics records prober activity on a private registry so that a run
// can be dumped to a node_exporter textfile at exit.
type ProbeMetrics struct {
	registry  *prometheus.Registry
	probes    *prometheus.CounterVec
	attempts  prometheus.Counter
	datagrams prometheus.Counter
	duration  prometheus.Histogram
}

func NewProbeMetrics() *ProbeMetrics {
	m := &ProbeMetrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phynode_probe_total",
			Help: "Probes finished, by result.",
		}, []string{"result"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phynode_probe_attempts_total",
			Help: "Command sends, retries included.",
		}),
		datagrams: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phynode_datagrams_received_total",
			Help: "Datagrams read from the node, matching or not.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phynode_probe_duration_seconds",
			Help:    "Time from first send to the probe's outcome.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	m.registry.MustRegister(m.probes, m.attempts, m.datagrams, m.duration)
	return m
}

func (m *ProbeMetrics) ObserveAttempt() {
	m.attempts.Inc()
}

func (m *ProbeMetrics) ObserveDatagram() {
	m.datagrams.Inc()
}

func (m *ProbeMetrics) ObserveProbe(result string, elapsed time.Duration) {
	m.probes.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// Registry exposes the private registry.
func (m *ProbeMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in text exposition format to path.
func (m *ProbeMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
