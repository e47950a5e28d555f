package formatter

import (
	"fmt"
	"io"

	"github.com/tektronix/behave/types"
)

// Progress writes one character per executed step, grouped by feature
// file.
type Progress struct {
	w       io.Writer
	started bool
}

// NewProgress returns a progress formatter writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

func (p *Progress) URI(path string) {
	if p.started {
		fmt.Fprintln(p.w)
	}
	p.started = true
	fmt.Fprintf(p.w, "%s  ", path)
}

func (p *Progress) Feature(info FeatureInfo) {}

func (p *Progress) Scenario(info ScenarioInfo) {}

func (p *Progress) Step(info StepInfo) {
	fmt.Fprint(p.w, progressMark(info.Status))
}

func (p *Progress) Close() error {
	if p.started {
		fmt.Fprintln(p.w)
	}
	return nil
}

func progressMark(status types.Status) string {
	switch status {
	case types.StatusPassed:
		return "."
	case types.StatusFailed:
		return "F"
	case types.StatusError:
		return "E"
	case types.StatusUndefined:
		return "U"
	case types.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}
