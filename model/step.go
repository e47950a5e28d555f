package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/tektronix/behave/formatter"
	"github.com/tektronix/behave/metrics"
	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/stepdef"
	"github.com/tektronix/behave/types"
)

// Step keywords as they appear in feature files.
const (
	KeywordGiven = "Given"
	KeywordWhen  = "When"
	KeywordThen  = "Then"
	KeywordAnd   = "And"
	KeywordBut   = "But"
	KeywordStep  = "*"
)

// ResolveStepType maps a step keyword to the registry type it is looked
// up under. And/But/* inherit the resolved type of the preceding step;
// previous is empty at the start of a scenario.
func ResolveStepType(keyword, previous string) string {
	switch strings.ToLower(strings.TrimSpace(keyword)) {
	case "given":
		return stepdef.TypeGiven
	case "when":
		return stepdef.TypeWhen
	case "then":
		return stepdef.TypeThen
	default:
		if previous != "" {
			return previous
		}
		return stepdef.TypeStep
	}
}

// Step is one executable line of a scenario.
type Step struct {
	statement
	stepType  string
	keyword   string
	text      string
	docString string
	table     *Table
	location  types.Location
}

// NewStep builds a step. stepType is the registry type the step matches
// under (see ResolveStepType); keyword is the display keyword.
func NewStep(stepType, keyword, text string, location types.Location) *Step {
	return &Step{
		statement: newStatement(),
		stepType:  stepType,
		keyword:   keyword,
		text:      text,
		location:  location,
	}
}

// StepType returns the registry type the step matches under.
func (s *Step) StepType() string {
	return s.stepType
}

// Keyword returns the display keyword, e.g. "Given".
func (s *Step) Keyword() string {
	return s.keyword
}

// Text returns the step text matched against step patterns.
func (s *Step) Text() string {
	return s.text
}

// Location returns where the step was defined.
func (s *Step) Location() types.Location {
	return s.location
}

// DocString returns the multi-line text argument, if any.
func (s *Step) DocString() string {
	return s.docString
}

// SetDocString attaches a multi-line text argument.
func (s *Step) SetDocString(text string) {
	s.docString = text
}

// Table returns the tabular argument, if any.
func (s *Step) Table() *Table {
	return s.table
}

// SetTable attaches a tabular argument.
func (s *Step) SetTable(table *Table) {
	s.table = table
}

// Clone returns an unrun copy of the step. Background steps are cloned
// into every scenario so each run keeps its own status.
func (s *Step) Clone() *Step {
	clone := NewStep(s.stepType, s.keyword, s.text, s.location)
	clone.docString = s.docString
	clone.table = s.table
	return clone
}

func (s *Step) String() string {
	return s.keyword + " " + s.text
}

// Run matches and executes the step. It returns false when the scenario
// must stop: the step failed, had no matching definition, or one of its
// hooks failed. quiet suppresses formatter events; capture arms output
// capture around the step and its hooks.
func (s *Step) Run(r *runner.ModelRunner, quiet, capture bool) bool {
	s.statement = newStatement()

	match, ok := r.Steps().Find(s.stepType, s.text)
	if !ok {
		s.status = types.StatusUndefined
		r.AddUndefinedStep(s.stepType, s.keyword, s.text, s.location)
		metrics.RecordStep(r.RunID(), s.status)
		if !quiet {
			s.emit(r, "")
		}
		return false
	}

	if capture {
		if err := r.StartCapture(); err != nil {
			log := r.Log()
			log.Error().Err(err).Msg("starting capture")
		}
	}
	r.RunHook(runner.HookBeforeStep, s)

	start := time.Now()
	if !s.hookFailed {
		s.execute(r, match)
	}
	s.duration = time.Since(start)

	r.RunHook(runner.HookAfterStep, s)
	if capture {
		r.StopCapture()
	}

	if s.status.HasFailed() && capture {
		if report := r.CaptureReport(); report != "" {
			s.errorMessage += "\n" + report
			if s.failure != nil {
				s.failure.Captured = report
			}
		}
	}

	metrics.RecordStep(r.RunID(), s.status)
	if !quiet {
		s.emit(r, match.Location())
	}
	return !s.status.HasFailed() && !s.hookFailed
}

// execute runs the matched implementation under user mode. Errors mark
// the step failed; panics mark it errored and keep the run loop alive.
func (s *Step) execute(r *runner.ModelRunner, match *stepdef.Match) {
	c := r.Context()

	var text any
	if s.docString != "" {
		text = s.docString
	}
	var table any
	if s.table != nil {
		table = s.table
	}
	c.Set("text", text)
	c.Set("table", table)

	var runErr error
	recovered := panics.Try(func() {
		runErr = c.UseUserMode(func() error {
			return match.Run(c)
		})
	})
	switch {
	case recovered != nil:
		s.status = types.StatusError
		s.failure = types.NewFailure(recovered.AsError())
		s.failure.Stack = string(recovered.Stack)
		s.errorMessage = fmt.Sprintf("panic: %v", recovered.Value)
		if r.Verbose() {
			s.errorMessage += "\n" + strings.TrimRight(string(recovered.Stack), "\n")
		}
	case runErr != nil:
		s.status = types.StatusFailed
		s.failure = types.NewFailure(runErr)
		s.errorMessage = runErr.Error()
	default:
		s.status = types.StatusPassed
	}
}

func (s *Step) emit(r *runner.ModelRunner, definedAt string) {
	info := formatter.StepInfo{
		Keyword:      s.keyword,
		Text:         s.text,
		Status:       s.status,
		Duration:     s.duration,
		Location:     definedAt,
		ErrorMessage: s.errorMessage,
	}
	for _, f := range r.Formatters() {
		f.Step(info)
	}
}
