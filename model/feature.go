package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tektronix/behave/formatter"
	"github.com/tektronix/behave/metrics"
	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/tags"
	"github.com/tektronix/behave/types"
)

// Feature is a group of scenarios loaded from one feature file.
type Feature struct {
	statement
	name        string
	description string
	tags        []types.Tag
	location    types.Location
	background  []*Step
	scenarios   []*Scenario
}

// NewFeature builds an empty feature; scenarios are attached with
// AddScenario.
func NewFeature(name, description string, location types.Location, featureTags []types.Tag) *Feature {
	return &Feature{
		statement:   newStatement(),
		name:        name,
		description: description,
		tags:        append([]types.Tag(nil), featureTags...),
		location:    location,
	}
}

// AddScenario appends a scenario and links it back to the feature.
func (f *Feature) AddScenario(s *Scenario) {
	s.feature = f
	f.scenarios = append(f.scenarios, s)
}

// SetBackground records the background steps shown for the feature.
// Loaders clone them into each scenario's step list.
func (f *Feature) SetBackground(steps []*Step) {
	f.background = steps
}

// Name returns the feature name.
func (f *Feature) Name() string {
	return f.name
}

// Description returns the free-text description under the feature line.
func (f *Feature) Description() string {
	return f.description
}

// Filename returns the path of the feature file.
func (f *Feature) Filename() string {
	return f.location.File
}

// Location returns where the feature was defined.
func (f *Feature) Location() types.Location {
	return f.location
}

// Tags returns the feature's tags.
func (f *Feature) Tags() []types.Tag {
	return f.tags
}

// Background returns the background steps, if any.
func (f *Feature) Background() []*Step {
	return f.background
}

// Scenarios returns the feature's scenarios in document order.
func (f *Feature) Scenarios() []*Scenario {
	return f.scenarios
}

// ShouldRun reports whether the selector accepts the feature: either
// its own tags match, or at least one scenario's effective tags do.
func (f *Feature) ShouldRun(selector *tags.Expression) bool {
	if selector == nil {
		return true
	}
	if ok, err := selector.Match(f.tags); err == nil && ok {
		return true
	}
	for _, s := range f.scenarios {
		if s.ShouldRun(selector) {
			return true
		}
	}
	return false
}

// MarkSkipped marks the feature and everything under it skipped.
func (f *Feature) MarkSkipped() {
	f.setStatus(types.StatusSkipped)
	for _, s := range f.scenarios {
		s.MarkSkipped()
	}
}

// Run executes the feature inside its own context layer and returns
// true when it failed. While the feature runs, its context layer binds
// the sub-step executor so step implementations can run nested steps.
func (f *Feature) Run(r *runner.ModelRunner) bool {
	f.statement = newStatement()
	c := r.Context()

	shouldRun := f.ShouldRun(r.Selector())

	c.Push("feature")
	c.Set("feature", f)
	c.Set("tags", append([]types.Tag(nil), f.tags...))
	c.BindSubstepRunner(func(text string) error {
		return f.runSubsteps(r, text)
	})

	info := formatter.FeatureInfo{Name: f.name, Location: f.location, Tags: f.tags}
	for _, fm := range r.Formatters() {
		fm.Feature(info)
	}

	hooksCalled := false
	if shouldRun && !r.DryRun() {
		hooksCalled = true
		for _, tag := range f.tags {
			r.RunHook(runner.HookBeforeTag, string(tag))
		}
		r.RunHook(runner.HookBeforeFeature, f)
	}
	// A broken before_feature hook leaves the scenarios untested.
	skipScenarios := f.hookFailed

	failedCount := 0
	if shouldRun && !skipScenarios {
		for _, scenario := range f.scenarios {
			if scenario.Run(r) {
				failedCount++
				if r.StopOnFailure() || r.Aborted() {
					break
				}
			}
			if r.Aborted() {
				break
			}
		}
	} else if !shouldRun {
		f.MarkSkipped()
	}

	f.duration = 0
	for _, scenario := range f.scenarios {
		f.duration += scenario.duration
	}
	f.status = f.computeStatus()

	if hooksCalled {
		r.RunHook(runner.HookAfterFeature, f)
		for _, tag := range f.tags {
			r.RunHook(runner.HookAfterTag, string(tag))
		}
	}

	c.UnbindSubstepRunner()
	if err := c.Pop(); err != nil {
		// Feature cleanups failed under the strict policy.
		failedCount++
		f.setStatus(types.StatusFailed)
		f.appendError(err.Error())
	}

	metrics.RecordFeature(r.RunID(), f.status)
	return f.status.HasFailed() || failedCount > 0
}

// computeStatus aggregates the scenario statuses. A mix of executed and
// untested scenarios means the feature was cut short and counts as
// failed.
func (f *Feature) computeStatus() types.Status {
	if f.hookFailed {
		return types.StatusFailed
	}
	if len(f.scenarios) == 0 {
		return types.StatusSkipped
	}
	var passed, skipped, untested int
	for _, s := range f.scenarios {
		switch status := s.status; {
		case status.HasFailed():
			return status
		case status == types.StatusSkipped:
			skipped++
		case status == types.StatusUntested:
			untested++
		default:
			passed++
		}
	}
	switch {
	case untested > 0 && passed > 0:
		return types.StatusFailed
	case untested > 0:
		return types.StatusUntested
	case passed == 0 && skipped > 0:
		return types.StatusSkipped
	default:
		return types.StatusPassed
	}
}

// CountInto adds the feature and its children to the run tallies.
func (f *Feature) CountInto(stats *types.RunStats) {
	stats.Features.Increment(f.status)
	for _, scenario := range f.scenarios {
		stats.Scenarios.Increment(scenario.status)
		for _, step := range scenario.steps {
			stats.Steps.Increment(step.status)
		}
	}
}

// runSubsteps executes a block of steps-text as quiet, uncaptured
// sub-steps of the current step. The first sub-step that does not pass
// stops the block with a synthetic failure naming it.
func (f *Feature) runSubsteps(r *runner.ModelRunner, text string) error {
	steps, err := ParseStepsText(text, f.location.File)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if !step.Run(r, true, false) {
			message := fmt.Sprintf("%s SUB-STEP: %s %s",
				strings.ToUpper(step.status.String()), step.keyword, step.text)
			if step.errorMessage != "" {
				message += fmt.Sprintf("\nSubstep info: %s\n", step.errorMessage)
			}
			return errors.New(message)
		}
	}
	return nil
}
