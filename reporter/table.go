package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"

	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/types"
)

var _ runner.Reporter = (*TableReporter)(nil)

// TableReporter renders the run as a result table: one row per feature
// with its scenarios nested under it, a status column and a totals
// footer. The table style follows the overall verdict.
type TableReporter struct {
	log      zerolog.Logger
	out      io.Writer
	features []runner.Feature
}

// NewTableReporter creates a table reporter.
func NewTableReporter(cfg Config) *TableReporter {
	return &TableReporter{log: cfg.Log, out: cfg.out()}
}

// Feature records a feature for the final table.
func (r *TableReporter) Feature(f runner.Feature) {
	r.features = append(r.features, f)
}

// End renders the table.
func (r *TableReporter) End() {
	r.log.Info().Msg("Printing results...")

	stats := types.NewRunStats()
	for _, f := range r.features {
		f.CountInto(stats)
		stats.Duration += f.Duration()
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(fmt.Sprintf("Feature Run Results (%s)", formatDuration(stats.Duration)))

	t.AppendHeader(table.Row{
		"Type", "Name", "Duration", "Steps", "Passed", "Failed", "Skipped", "Status", "Error",
	})

	// Set column configurations for better readability
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "Name", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Steps", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, f := range r.features {
		featureStats := types.NewRunStats()
		f.CountInto(featureStats)

		t.AppendRow(table.Row{
			"Feature",
			f.Name(),
			formatDuration(f.Duration()),
			"-", // Steps are counted on scenario rows.
			featureStats.Scenarios[types.StatusPassed],
			featureStats.Scenarios.Failed(),
			featureStats.Scenarios[types.StatusSkipped] + featureStats.Scenarios[types.StatusUntested],
			getResultString(f.Status()),
			"",
		})

		lister, ok := f.(scenarioLister)
		if !ok {
			continue
		}
		scenarios := lister.Scenarios()
		for i, s := range scenarios {
			prefix := "├──"
			if i == len(scenarios)-1 {
				prefix = "└──"
			}

			passed, failed, skipped := 0, 0, 0
			for _, step := range s.Steps() {
				switch {
				case step.Status() == types.StatusPassed:
					passed++
				case step.Status().HasFailed():
					failed++
				default:
					skipped++
				}
			}

			t.AppendRow(table.Row{
				"Scenario",
				fmt.Sprintf("%s %s", prefix, s.Name()),
				formatDuration(s.Duration()),
				len(s.Steps()),
				passed,
				failed,
				skipped,
				getResultString(s.Status()),
				keyErrorLine(s.ErrorCause()),
			})
		}

		t.AppendSeparator()
	}

	// The table style follows the overall verdict.
	overall := overallStatus(r.features)
	switch {
	case overall == types.StatusPassed:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case overall.HasFailed():
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(stats.Duration),
		stats.Steps.Total(),
		stats.Scenarios[types.StatusPassed],
		stats.Scenarios.Failed(),
		stats.Scenarios[types.StatusSkipped] + stats.Scenarios[types.StatusUntested],
		getResultString(overall),
		"",
	})

	t.Render()
}

func overallStatus(features []runner.Feature) types.Status {
	statuses := make([]types.Status, 0, len(features))
	for _, f := range features {
		statuses = append(statuses, f.Status())
	}
	return types.CombineAll(statuses)
}

// getResultString returns a marked string representing the element status
func getResultString(status types.Status) string {
	switch status {
	case types.StatusPassed:
		return "✓ passed"
	case types.StatusSkipped, types.StatusUntested:
		return "- " + status.String()
	default:
		return "✗ " + status.String()
	}
}

// keyErrorLine extracts the most pertinent part of the error message for display
func keyErrorLine(msg string) string {
	if msg == "" {
		return ""
	}

	// Look for panics, whose first line carries the value
	if idx := strings.Index(msg, "panic:"); idx != -1 {
		rest := msg[idx:]
		if newLine := strings.Index(rest, "\n"); newLine != -1 {
			return rest[:newLine]
		}
		return rest
	}

	// Otherwise limit to the first line or 80 chars
	if idx := strings.Index(msg, "\n"); idx != -1 {
		msg = msg[:idx]
	}
	if len(msg) > 80 {
		return msg[:70] + "..."
	}
	return msg
}
