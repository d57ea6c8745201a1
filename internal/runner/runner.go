// Package runner walks a probe plan against a node and prints the bench
// report: progress banners, sensor replies and a closing FINISH line.
package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"phynode_probe/internal/plan"
	"phynode_probe/internal/shared/logger"
)

// FinishLine is printed once every step has passed.
const FinishLine = "FINISH"

// Prober is the single operation the runner needs from internal/probe.
type Prober interface {
	Probe(ctx context.Context, command, expect string) (string, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// StepResult records one passed step.
type StepResult struct {
	Command  string
	Response string
	Elapsed  time.Duration
}

// Report summarises a run. Steps holds only the steps that passed.
type Report struct {
	RunID string
	Steps []StepResult
}

// Runner executes plans sequentially on one prober.
type Runner struct {
	prober Prober
	out    io.Writer
	sleep  SleepFunc
}

// New returns a Runner printing to out.
func New(prober Prober, out io.Writer) *Runner {
	return &Runner{prober: prober, out: out, sleep: sleepCtx}
}

// WithSleep replaces the pause implementation, mainly for tests.
func (r *Runner) WithSleep(fn SleepFunc) *Runner {
	r.sleep = fn
	return r
}

// Run executes p in order and stops at the first failing step. The returned
// error wraps the prober's error, so errors.As still finds a
// *probe.CommunicationError.
func (r *Runner) Run(ctx context.Context, p plan.Plan) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := logger.WithComponent("runner").With().Str("run_id", report.RunID).Logger()
	log.Info().Int("steps", len(p.Steps)).Msg("Run started")

	for i, step := range p.Steps {
		if step.Name != "" {
			fmt.Fprintln(r.out, step.Name)
		}
		if err := r.sleep(ctx, step.PauseBefore); err != nil {
			return report, err
		}

		start := time.Now()
		resp, err := r.prober.Probe(ctx, step.Command, step.Expect)
		if err != nil {
			log.Error().Err(err).Int("step", i+1).Str("command", step.Command).Msg("Step failed")
			return report, fmt.Errorf("step %d (%s): %w", i+1, step.Command, err)
		}
		elapsed := time.Since(start)
		report.Steps = append(report.Steps, StepResult{Command: step.Command, Response: resp, Elapsed: elapsed})
		log.Debug().Int("step", i+1).Str("command", step.Command).Dur("elapsed", elapsed).Msg("Step passed")

		if step.PrintResponse {
			fmt.Fprintln(r.out, Clean(resp))
		}
		if err := r.sleep(ctx, step.PauseAfter); err != nil {
			return report, err
		}
	}

	fmt.Fprintln(r.out, FinishLine)
	log.Info().Int("steps", len(report.Steps)).Msg("Run finished")
	return report, nil
}

// Clean strips the NUL terminator and line ending the firmware appends.
func Clean(payload string) string {
	return strings.TrimRight(payload, "\x00\r\n")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
