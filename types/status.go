package types

// Status represents the possible states of a model element (feature,
// scenario or step) during and after a run.
type Status string

const (
	StatusUntested  Status = "untested"
	StatusSkipped   Status = "skipped"
	StatusPassed    Status = "passed"
	StatusUndefined Status = "undefined"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
)

// severity orders statuses for aggregation. A parent element takes the
// most severe status among its children.
var severity = map[Status]int{
	StatusUntested:  0,
	StatusSkipped:   1,
	StatusPassed:    2,
	StatusUndefined: 3,
	StatusFailed:    4,
	StatusError:     5,
}

func (s Status) String() string {
	return string(s)
}

// HasFailed reports whether the status counts as a failure for the run
// verdict. Undefined steps fail their scenario.
func (s Status) HasFailed() bool {
	switch s {
	case StatusFailed, StatusError, StatusUndefined:
		return true
	default:
		return false
	}
}

// Combine returns the more severe of the two statuses.
func (s Status) Combine(other Status) Status {
	if severity[other] > severity[s] {
		return other
	}
	return s
}

// CombineAll aggregates a status over a list of child statuses, starting
// from untested.
func CombineAll(statuses []Status) Status {
	combined := StatusUntested
	for _, st := range statuses {
		combined = combined.Combine(st)
	}
	return combined
}
