package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tektronix/behave/types"
)

// Plain writes an unadorned text trace of the run, one line per step.
type Plain struct {
	w io.Writer
}

// NewPlain returns a plain-text formatter writing to w.
func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w}
}

func (p *Plain) URI(path string) {}

func (p *Plain) Feature(info FeatureInfo) {
	if line := tagLine(info.Tags); line != "" {
		fmt.Fprintf(p.w, "%s\n", line)
	}
	fmt.Fprintf(p.w, "Feature: %s  # %s\n", info.Name, info.Location)
}

func (p *Plain) Scenario(info ScenarioInfo) {
	fmt.Fprintln(p.w)
	if line := tagLine(info.Tags); line != "" {
		fmt.Fprintf(p.w, "  %s\n", line)
	}
	fmt.Fprintf(p.w, "  Scenario: %s  # %s\n", info.Name, info.Location)
}

func (p *Plain) Step(info StepInfo) {
	fmt.Fprintf(p.w, "    %s %s ... %s (%.3fs)\n", info.Keyword, info.Text, info.Status, info.Duration.Seconds())
	if info.ErrorMessage != "" {
		for _, line := range strings.Split(strings.TrimRight(info.ErrorMessage, "\n"), "\n") {
			fmt.Fprintf(p.w, "      %s\n", line)
		}
	}
}

func (p *Plain) Close() error {
	fmt.Fprintln(p.w)
	return nil
}

func tagLine(tags []types.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "@" + string(t)
	}
	return strings.Join(parts, " ")
}
