// Package formatter renders run progress to output streams. Formatters
// receive events while the model executes; reporters, by contrast, see
// finished features only.
package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/tektronix/behave/types"
)

// FeatureInfo describes a feature at the moment its run starts.
type FeatureInfo struct {
	Name     string
	Location types.Location
	Tags     []types.Tag
}

// ScenarioInfo describes a scenario at the moment its run starts.
type ScenarioInfo struct {
	Name     string
	Location types.Location
	Tags     []types.Tag
}

// StepInfo describes a finished step.
type StepInfo struct {
	Keyword      string
	Text         string
	Status       types.Status
	Duration     time.Duration
	Location     string
	ErrorMessage string
}

// Formatter receives run events in document order. URI is called once
// per feature file before the feature's events; Close flushes pending
// output at the end of the run.
type Formatter interface {
	URI(path string)
	Feature(info FeatureInfo)
	Scenario(info ScenarioInfo)
	Step(info StepInfo)
	Close() error
}

// New builds a formatter by name.
func New(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "plain":
		return NewPlain(w), nil
	case "progress":
		return NewProgress(w), nil
	case "json":
		return NewJSON(w), nil
	default:
		return nil, fmt.Errorf("unknown formatter %q", name)
	}
}

// Names returns the known formatter names.
func Names() []string {
	return []string{"plain", "progress", "json"}
}
