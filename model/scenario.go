package model

import (
	"github.com/tektronix/behave/formatter"
	"github.com/tektronix/behave/metrics"
	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/tags"
	"github.com/tektronix/behave/types"
)

// Scenario is one runnable example of a feature.
type Scenario struct {
	statement
	name      string
	tags      []types.Tag
	location  types.Location
	steps     []*Step
	feature   *Feature
	wasDryRun bool
}

// NewScenario builds a scenario from its steps.
func NewScenario(name string, location types.Location, scenarioTags []types.Tag, steps ...*Step) *Scenario {
	return &Scenario{
		statement: newStatement(),
		name:      name,
		tags:      append([]types.Tag(nil), scenarioTags...),
		location:  location,
		steps:     steps,
	}
}

// Name returns the scenario name.
func (s *Scenario) Name() string {
	return s.name
}

// Tags returns the scenario's own tags.
func (s *Scenario) Tags() []types.Tag {
	return s.tags
}

// Location returns where the scenario was defined.
func (s *Scenario) Location() types.Location {
	return s.location
}

// Steps returns the scenario's steps, including any background steps
// cloned in at load time.
func (s *Scenario) Steps() []*Step {
	return s.steps
}

// Feature returns the owning feature, or nil for a detached scenario.
func (s *Scenario) Feature() *Feature {
	return s.feature
}

// EffectiveTags returns the scenario tags combined with the owning
// feature's tags.
func (s *Scenario) EffectiveTags() []types.Tag {
	if s.feature == nil {
		return append([]types.Tag(nil), s.tags...)
	}
	seen := make(map[types.Tag]bool, len(s.feature.tags)+len(s.tags))
	var combined []types.Tag
	for _, t := range append(append([]types.Tag(nil), s.feature.tags...), s.tags...) {
		if !seen[t] {
			seen[t] = true
			combined = append(combined, t)
		}
	}
	return combined
}

// ErrorCause returns the message to report for the scenario: its own
// error message when set (hook and cleanup failures land there),
// otherwise the first failing step's.
func (s *Scenario) ErrorCause() string {
	if s.errorMessage != "" {
		return s.errorMessage
	}
	for _, step := range s.steps {
		if step.Status().HasFailed() && step.errorMessage != "" {
			return step.errorMessage
		}
	}
	return ""
}

// ShouldRun reports whether the selector accepts the scenario's
// effective tags. A nil selector accepts everything.
func (s *Scenario) ShouldRun(selector *tags.Expression) bool {
	if selector == nil {
		return true
	}
	ok, err := selector.Match(s.EffectiveTags())
	if err != nil {
		return true
	}
	return ok
}

// MarkSkipped marks the scenario and all its steps skipped without
// running anything.
func (s *Scenario) MarkSkipped() {
	s.setStatus(types.StatusSkipped)
	for _, step := range s.steps {
		step.setStatus(types.StatusSkipped)
	}
}

// Run executes the scenario inside its own context layer and returns
// true when it failed. Deselected scenarios are marked skipped; dry
// runs match steps without executing them so undefined steps are still
// reported.
func (s *Scenario) Run(r *runner.ModelRunner) bool {
	s.statement = newStatement()
	c := r.Context()

	shouldRun := s.ShouldRun(r.Selector())
	runSteps := shouldRun && !r.DryRun()
	dryRunScenario := shouldRun && r.DryRun()
	s.wasDryRun = dryRunScenario

	c.Push("scenario")
	c.Set("scenario", s)
	c.Set("tags", s.EffectiveTags())

	hooksCalled := false
	if runSteps {
		hooksCalled = true
		for _, tag := range s.tags {
			r.RunHook(runner.HookBeforeTag, string(tag))
		}
		r.RunHook(runner.HookBeforeScenario, s)
	}
	// A broken before_scenario hook leaves the steps untested.
	skipSteps := s.hookFailed

	r.SetupCapture()

	info := formatter.ScenarioInfo{Name: s.name, Location: s.location, Tags: s.tags}
	for _, f := range r.Formatters() {
		f.Scenario(info)
	}

	stop := false
	for _, step := range s.steps {
		switch {
		case skipSteps:
			step.statement = newStatement()
		case runSteps && !stop:
			if !step.Run(r, false, true) {
				stop = true
				c.SetRootAttribute("failed", true)
			}
		case dryRunScenario || stop:
			// Remaining steps are still matched so undefined steps get
			// reported.
			step.setStatus(types.StatusSkipped)
			if dryRunScenario {
				step.setStatus(types.StatusUntested)
			}
			if _, ok := r.Steps().Find(step.stepType, step.text); !ok {
				step.setStatus(types.StatusUndefined)
				r.AddUndefinedStep(step.stepType, step.keyword, step.text, step.location)
			}
			if !dryRunScenario {
				step.emit(r, "")
			}
		default:
			// Deselected scenario: steps are skipped and undefined
			// steps are not detected.
			step.setStatus(types.StatusSkipped)
		}
	}

	s.duration = 0
	for _, step := range s.steps {
		s.duration += step.duration
	}
	s.status = s.computeStatus()
	if !shouldRun && len(s.steps) == 0 {
		s.status = types.StatusSkipped
	}
	failed := s.status.HasFailed()

	if hooksCalled {
		r.RunHook(runner.HookAfterScenario, s)
		for _, tag := range s.tags {
			r.RunHook(runner.HookAfterTag, string(tag))
		}
	}
	r.TeardownCapture()

	if err := c.Pop(); err != nil {
		// Scenario cleanups failed under the strict policy. The
		// scenario fails; the run loop keeps going.
		failed = true
		s.setStatus(types.StatusFailed)
		s.appendError(err.Error())
	}

	metrics.RecordScenario(r.RunID(), s.featureName(), s.status)
	return failed
}

// computeStatus aggregates the step statuses. The first step that did
// not pass decides; undefined steps fail the scenario except in dry
// runs, where they leave it untested.
func (s *Scenario) computeStatus() types.Status {
	if s.hookFailed {
		return types.StatusFailed
	}
	for _, step := range s.steps {
		if step.hookFailed {
			return types.StatusFailed
		}
		switch step.status {
		case types.StatusUndefined:
			if s.wasDryRun {
				return types.StatusUntested
			}
			return types.StatusFailed
		case types.StatusPassed:
			continue
		default:
			return step.status
		}
	}
	return types.StatusPassed
}

func (s *Scenario) featureName() string {
	if s.feature == nil {
		return ""
	}
	return s.feature.name
}
