package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phynode_probe/internal/plan"
	"phynode_probe/internal/probe"
	"phynode_probe/internal/shared"
	"phynode_probe/internal/shared/types"
	"phynode_probe/internal/simnode"
)

type probeCall struct {
	Command string
	Expect  string
}

// mockProber echoes the expected substring back, or fails on FailOn.
type mockProber struct {
	mu     sync.Mutex
	calls  []probeCall
	FailOn string
}

func (m *mockProber) Probe(_ context.Context, command, expect string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, probeCall{command, expect})
	if command == m.FailOn {
		return "", &probe.CommunicationError{Command: command, Expect: expect, Attempts: 10}
	}
	return expect + "42\n\x00", nil
}

type sleepRecorder struct {
	pauses []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.pauses = append(s.pauses, d)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRun_DefaultPlanOrderAndOutput(t *testing.T) {
	prober := &mockProber{}
	out := shared.NewThreadSafeBuffer()
	sleeps := &sleepRecorder{}

	report, err := New(prober, out).WithSleep(sleeps.Sleep).Run(context.Background(), plan.Default())
	require.NoError(t, err)

	var want []probeCall
	for _, s := range plan.Default().Steps {
		want = append(want, probeCall{s.Command, s.Expect})
	}
	assert.Equal(t, want, prober.calls)
	assert.Len(t, report.Steps, 12)
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, []string{
		"TEST LEDs",
		"TEST hdc1000", "temp:42",
		"TEST mpl3115a2", "pressure:42",
		"TEST mma8652", "x:42",
		"TEST mag3110", "x:42",
		"TEST tmp006", "tamb:42",
		"TEST tcs37727", "ct:42",
		"FINISH",
	}, out.Lines())

	var total time.Duration
	for _, d := range sleeps.pauses {
		total += d
	}
	assert.Equal(t, 3*500*time.Millisecond+6*100*time.Millisecond, total)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	prober := &mockProber{FailOn: "get:mma8652"}
	out := shared.NewThreadSafeBuffer()

	report, err := New(prober, out).WithSleep(noSleep).Run(context.Background(), plan.Default())
	require.Error(t, err)

	var commErr *probe.CommunicationError
	require.True(t, errors.As(err, &commErr))
	assert.Equal(t, "get:mma8652", commErr.Command)
	assert.True(t, errors.Is(err, probe.ErrCommunication))

	assert.Len(t, prober.calls, 9)
	assert.Len(t, report.Steps, 8)
	assert.NotContains(t, out.Lines(), FinishLine)
	assert.Equal(t, "TEST mma8652", out.Lines()[len(out.Lines())-1])
}

func TestRun_CancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&mockProber{}, shared.NewThreadSafeBuffer()).Run(ctx, plan.Default())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "temp:2215,rh:4102", Clean("temp:2215,rh:4102\n\x00"))
	assert.Equal(t, "LED_R_ON", Clean("LED_R_ON\r\n"))
	assert.Equal(t, "x:1", Clean("x:1"))
}

func startNode(t *testing.T, opts simnode.Options) *simnode.Node {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	n, err := simnode.Listen(ctx, "127.0.0.1:0", opts)
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return n
}

func newProber(t *testing.T, port int) *probe.Prober {
	t.Helper()
	cfg := types.DefaultConfig().ProbeConf
	cfg.Port, cfg.LocalPort, cfg.TimeoutMs, cfg.Attempts = port, 0, 30, 3
	p, err := probe.New(context.Background(), "127.0.0.1", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestRun_AgainstSimulatedNode(t *testing.T) {
	node := startNode(t, simnode.Options{Readings: simnode.DefaultReadings()})
	out := shared.NewThreadSafeBuffer()

	_, err := New(newProber(t, node.Addr().Port), out).WithSleep(noSleep).Run(context.Background(), plan.Default())
	require.NoError(t, err)

	lines := out.Lines()
	assert.Equal(t, FinishLine, lines[len(lines)-1])
	assert.Contains(t, lines, "temp:2215,rh:4102")
	assert.Contains(t, lines, "r:120,g:140,b:90,c:400,lux:210,ct:4100")
	assert.False(t, node.LED(simnode.LEDRed))
	assert.Equal(t, 12, node.Received())
}

func TestRun_SilentNodeFails(t *testing.T) {
	node := startNode(t, simnode.Options{Silent: true})
	out := shared.NewThreadSafeBuffer()

	_, err := New(newProber(t, node.Addr().Port), out).WithSleep(noSleep).Run(context.Background(), plan.Default())
	require.Error(t, err)
	assert.True(t, errors.Is(err, probe.ErrCommunication))
	assert.Equal(t, []string{"TEST LEDs"}, out.Lines())
}
