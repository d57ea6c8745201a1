// Package plan describes the ordered probe sequence a run walks through.
package plan

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Step is one probe plus its progress banner and pauses.
type Step struct {
	Name          string        `yaml:"name,omitempty"` // printed before the probe when set
	Command       string        `yaml:"command"`
	Expect        string        `yaml:"expect"`
	PauseBefore   time.Duration `yaml:"pause_before,omitempty"`
	PauseAfter    time.Duration `yaml:"pause_after,omitempty"`
	PrintResponse bool          `yaml:"print,omitempty"`
}

// Plan is an ordered list of steps.
type Plan struct {
	Steps []Step `yaml:"steps"`
}

const (
	ledSettle    = 500 * time.Millisecond
	sensorSettle = 100 * time.Millisecond
)

// Default returns the bench sequence: the three LEDs on then off, then one
// read per on-board sensor.
func Default() Plan {
	steps := []Step{
		{Name: "TEST LEDs", Command: "set:rled,val:1", Expect: "LED_R_ON", PauseAfter: ledSettle},
		{Command: "set:rled,val:0", Expect: "LED_R_OFF"},
		{Command: "set:gled,val:1", Expect: "LED_G_ON", PauseAfter: ledSettle},
		{Command: "set:gled,val:0", Expect: "LED_G_OFF"},
		{Command: "set:bled,val:1", Expect: "LED_B_ON", PauseAfter: ledSettle},
		{Command: "set:bled,val:0", Expect: "LED_B_OFF"},
	}
	sensors := []struct{ name, expect string }{
		{"hdc1000", "temp:"},
		{"mpl3115a2", "pressure:"},
		{"mma8652", "x:"},
		{"mag3110", "x:"},
		{"tmp006", "tamb:"},
		{"tcs37727", "ct:"},
	}
	for _, s := range sensors {
		steps = append(steps, Step{
			Name:          "TEST " + s.name,
			Command:       "get:" + s.name,
			Expect:        s.expect,
			PauseBefore:   sensorSettle,
			PrintResponse: true,
		})
	}
	return Plan{Steps: steps}
}

// Load reads a YAML plan file. Durations use Go syntax, e.g. "500ms".
func Load(path string) (Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read plan %s: %w", path, err)
	}
	var p Plan
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Plan{}, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects empty plans and steps that could never match.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return errors.New("plan has no steps")
	}
	for i, s := range p.Steps {
		switch {
		case s.Command == "":
			return fmt.Errorf("step %d: empty command", i+1)
		case s.Expect == "":
			return fmt.Errorf("step %d (%s): empty expect", i+1, s.Command)
		case s.PauseBefore < 0 || s.PauseAfter < 0:
			return fmt.Errorf("step %d (%s): negative pause", i+1, s.Command)
		}
	}
	return nil
}
