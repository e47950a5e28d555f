package types

import (
	"fmt"
	"time"
)

// Failure captures a single execution failure: the error itself, the
// stack (when recovered from a panic) and the capture report active at
// the time of the failure.
type Failure struct {
	Err       error
	Stack     string
	Captured  string
	Timestamp time.Time
}

// NewFailure wraps an error into a Failure stamped with the current time.
func NewFailure(err error) *Failure {
	return &Failure{Err: err, Timestamp: time.Now()}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Report renders the failure for diagnostics, including the stack and
// the captured output when present.
func (f *Failure) Report() string {
	out := f.Error()
	if f.Stack != "" {
		out = fmt.Sprintf("%s\n%s", out, f.Stack)
	}
	if f.Captured != "" {
		out = fmt.Sprintf("%s\n%s", out, f.Captured)
	}
	return out
}

func (f *Failure) Unwrap() error {
	return f.Err
}
