// Package model holds the executable feature tree: features contain
// scenarios, scenarios contain steps. Each element runs against a
// ModelRunner, pushes its own context layer and aggregates its status
// from its children.
package model

import (
	"time"

	"github.com/tektronix/behave/types"
)

// statement carries the run state shared by features, scenarios and
// steps, including the surface the hook dispatcher attaches failures
// to.
type statement struct {
	status       types.Status
	duration     time.Duration
	hookFailed   bool
	errorMessage string
	failure      *types.Failure
}

func newStatement() statement {
	return statement{status: types.StatusUntested}
}

// Status returns the element's current status. Before a run it is
// untested; afterwards it aggregates the element's children.
func (s *statement) Status() types.Status {
	return s.status
}

// Duration returns how long the element ran.
func (s *statement) Duration() time.Duration {
	return s.duration
}

// SetHookFailed marks the element as broken by a lifecycle hook.
func (s *statement) SetHookFailed() {
	s.hookFailed = true
}

// HookFailed reports whether a lifecycle hook failed on this element.
func (s *statement) HookFailed() bool {
	return s.hookFailed
}

// ErrorMessage returns the accumulated failure diagnostics.
func (s *statement) ErrorMessage() string {
	return s.errorMessage
}

// SetErrorMessage replaces the failure diagnostics.
func (s *statement) SetErrorMessage(msg string) {
	s.errorMessage = msg
}

// AppendErrorMessage appends to the failure diagnostics as-is.
func (s *statement) AppendErrorMessage(msg string) {
	s.errorMessage += msg
}

// StoreFailure records the structured failure of the element.
func (s *statement) StoreFailure(failure *types.Failure) {
	s.failure = failure
}

// Failure returns the structured failure, or nil.
func (s *statement) Failure() *types.Failure {
	return s.failure
}

func (s *statement) setStatus(status types.Status) {
	s.status = status
}

func (s *statement) appendError(msg string) {
	if s.errorMessage == "" {
		s.errorMessage = msg
		return
	}
	s.errorMessage += "\n" + msg
}
