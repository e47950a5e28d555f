// Package reporter contains run-level reporters. Reporters receive
// every feature of a run, whether it executed or not, and render their
// output once the run loop has finished.
package reporter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tektronix/behave/model"
	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/types"
)

// Config contains reporter configuration.
type Config struct {
	Log zerolog.Logger
	// Out is where the reporter renders. Defaults to stdout.
	Out io.Writer
}

func (c Config) out() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

// scenarioLister is the richer surface the model's feature type offers
// on top of the runner interface. Reporters that want per-scenario
// detail upgrade to it with a type assertion.
type scenarioLister interface {
	Scenarios() []*model.Scenario
}

var _ runner.Reporter = (*SummaryReporter)(nil)

// SummaryReporter prints the classic end-of-run tally: the failing
// scenarios by location, then one counts line per element kind and the
// total duration.
type SummaryReporter struct {
	log      zerolog.Logger
	out      io.Writer
	features []runner.Feature
}

// NewSummaryReporter creates a summary reporter.
func NewSummaryReporter(cfg Config) *SummaryReporter {
	return &SummaryReporter{log: cfg.Log, out: cfg.out()}
}

// Feature records a feature for the final summary.
func (r *SummaryReporter) Feature(f runner.Feature) {
	r.features = append(r.features, f)
}

// End renders the summary.
func (r *SummaryReporter) End() {
	stats := types.NewRunStats()
	var failing []*model.Scenario
	for _, f := range r.features {
		f.CountInto(stats)
		stats.Duration += f.Duration()
		if lister, ok := f.(scenarioLister); ok {
			for _, s := range lister.Scenarios() {
				if s.Status().HasFailed() {
					failing = append(failing, s)
				}
			}
		}
	}

	if len(failing) > 0 {
		fmt.Fprintf(r.out, "\nFailing scenarios:\n")
		for _, s := range failing {
			fmt.Fprintf(r.out, "  %s  %s\n", s.Location(), s.Name())
		}
	}

	fmt.Fprintf(r.out, "\n%s", stats.Text())
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
