package types

import (
	"fmt"
	"strings"
	"time"
)

// Counts tallies model elements by status.
type Counts map[Status]int

// Increment bumps the tally for the given status.
func (c Counts) Increment(s Status) {
	c[s]++
}

// Total returns the number of counted elements across all statuses.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Failed returns the number of elements whose status counts as a failure.
func (c Counts) Failed() int {
	return c[StatusFailed] + c[StatusError] + c[StatusUndefined]
}

// Summary renders the behave-style one-line tally, e.g.
// "2 passed, 1 failed, 1 skipped, 1 undefined".
func (c Counts) Summary() string {
	parts := []string{fmt.Sprintf("%d passed", c[StatusPassed])}
	for _, s := range []Status{StatusFailed, StatusError, StatusSkipped, StatusUntested, StatusUndefined} {
		if c[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c[s], s))
		}
	}
	return strings.Join(parts, ", ")
}

// RunStats aggregates the counts for a whole run.
type RunStats struct {
	Features  Counts
	Scenarios Counts
	Steps     Counts
	Duration  time.Duration
}

// NewRunStats returns a RunStats with initialized count maps.
func NewRunStats() *RunStats {
	return &RunStats{
		Features:  make(Counts),
		Scenarios: make(Counts),
		Steps:     make(Counts),
	}
}

// Text renders the end-of-run tally: one counts line per element kind
// and the total duration.
func (s *RunStats) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d features: %s\n", s.Features.Total(), s.Features.Summary())
	fmt.Fprintf(&b, "%d scenarios: %s\n", s.Scenarios.Total(), s.Scenarios.Summary())
	fmt.Fprintf(&b, "%d steps: %s\n", s.Steps.Total(), s.Steps.Summary())
	fmt.Fprintf(&b, "Took %.1fs\n", s.Duration.Seconds())
	return b.String()
}
