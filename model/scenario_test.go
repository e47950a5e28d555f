package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/scope"
	"github.com/tektronix/behave/stepdef"
	"github.com/tektronix/behave/types"
)

// loginSteps registers the step implementations the scenario tests are
// built around.
func loginSteps(t *testing.T) *stepdef.Registry {
	t.Helper()
	steps := stepdef.NewRegistry()
	steps.Given(`a registered user`, func(c *scope.Context, args ...string) error {
		return nil
	})
	steps.When(`the user signs in`, func(c *scope.Context, args ...string) error {
		return nil
	})
	steps.When(`the user mistypes the password`, func(c *scope.Context, args ...string) error {
		return errors.New("bad credentials")
	})
	steps.Then(`the dashboard is shown`, func(c *scope.Context, args ...string) error {
		return nil
	})
	return steps
}

func loginScenario(steps ...*Step) *Scenario {
	return NewScenario("Successful login", stepLocation(2), nil, steps...)
}

func TestScenarioRunAllPassed(t *testing.T) {
	r := newModelRunner(t, runner.Config{Steps: loginSteps(t)})
	scenario := loginScenario(
		NewStep(stepdef.TypeGiven, KeywordGiven, "a registered user", stepLocation(3)),
		NewStep(stepdef.TypeWhen, KeywordWhen, "the user signs in", stepLocation(4)),
		NewStep(stepdef.TypeThen, KeywordThen, "the dashboard is shown", stepLocation(5)),
	)

	failed := scenario.Run(r)

	assert.False(t, failed)
	assert.Equal(t, types.StatusPassed, scenario.Status())
	for _, step := range scenario.Steps() {
		assert.Equal(t, types.StatusPassed, step.Status())
	}
	assert.Equal(t, 1, r.Context().Depth())
	assert.False(t, r.Context().Bool("failed"))
}

func TestScenarioSkipsStepsAfterFailure(t *testing.T) {
	r := newModelRunner(t, runner.Config{Steps: loginSteps(t)})
	scenario := loginScenario(
		NewStep(stepdef.TypeGiven, KeywordGiven, "a registered user", stepLocation(3)),
		NewStep(stepdef.TypeWhen, KeywordWhen, "the user mistypes the password", stepLocation(4)),
		NewStep(stepdef.TypeThen, KeywordThen, "the dashboard is shown", stepLocation(5)),
		NewStep(stepdef.TypeThen, KeywordThen, "an alert is raised", stepLocation(6)),
	)

	failed := scenario.Run(r)

	assert.True(t, failed)
	assert.Equal(t, types.StatusFailed, scenario.Status())
	statuses := make([]types.Status, 0, 4)
	for _, step := range scenario.Steps() {
		statuses = append(statuses, step.Status())
	}
	// The step after the failure is skipped; the unmatched one is still
	// detected as undefined.
	assert.Equal(t, []types.Status{
		types.StatusPassed,
		types.StatusFailed,
		types.StatusSkipped,
		types.StatusUndefined,
	}, statuses)
	require.Len(t, r.UndefinedSteps(), 1)
	assert.True(t, r.Context().Bool("failed"))
}

func TestScenarioUndefinedStepFails(t *testing.T) {
	r := newModelRunner(t, runner.Config{Steps: loginSteps(t)})
	scenario := loginScenario(
		NewStep(stepdef.TypeGiven, KeywordGiven, "a step nobody wrote", stepLocation(3)),
	)

	failed := scenario.Run(r)

	assert.True(t, failed)
	assert.Equal(t, types.StatusFailed, scenario.Status())
	require.Len(t, r.UndefinedSteps(), 1)
}

func TestScenarioDeselectedIsSkipped(t *testing.T) {
	hookCalled := false
	hooks := runner.NewHookRegistry()
	require.NoError(t, hooks.Register(runner.HookBeforeScenario, func(c *scope.Context, args ...any) error {
		hookCalled = true
		return nil
	}))
	r := newModelRunner(t, runner.Config{
		Steps:    loginSteps(t),
		Hooks:    hooks,
		Selector: selectTags(t, "smoke"),
	})
	scenario := loginScenario(
		NewStep(stepdef.TypeGiven, KeywordGiven, "a registered user", stepLocation(3)),
		NewStep(stepdef.TypeGiven, KeywordGiven, "a step nobody wrote", stepLocation(4)),
	)

	failed := scenario.Run(r)

	assert.False(t, failed)
	assert.False(t, hookCalled)
	assert.Equal(t, types.StatusSkipped, scenario.Status())
	for _, step := range scenario.Steps() {
		assert.Equal(t, types.StatusSkipped, step.Status())
	}
	// Undefined steps are not detected in deselected scenarios.
	assert.Empty(t, r.UndefinedSteps())
}

func TestScenarioDryRun(t *testing.T) {
	r := newModelRunner(t, runner.Config{Steps: loginSteps(t), DryRun: true})
	scenario := loginScenario(
		NewStep(stepdef.TypeGiven, KeywordGiven, "a registered user", stepLocation(3)),
		NewStep(stepdef.TypeGiven, KeywordGiven, "a step nobody wrote", stepLocation(4)),
	)

	failed := scenario.Run(r)

	assert.False(t, failed)
	assert.Equal(t, types.StatusUntested, scenario.Status())
	assert.Equal(t, types.StatusUntested, scenario.Steps()[0].Status())
	assert.Equal(t, types.StatusUndefined, scenario.Steps()[1].Status())
	// Dry runs still report undefined steps.
	require.Len(t, r.UndefinedSteps(), 1)
}

func TestScenarioBrokenBeforeHookSkipsSteps(t *testing.T) {
	afterCalled := false
	hooks := runner.NewHookRegistry()
	require.NoError(t, hooks.Register(runner.HookBeforeScenario, func(c *scope.Context, args ...any) error {
		return errors.New("fixture missing")
	}))
	require.NoError(t, hooks.Register(runner.HookAfterScenario, func(c *scope.Context, args ...any) error {
		afterCalled = true
		return nil
	}))
	r := newModelRunner(t, runner.Config{Steps: loginSteps(t), Hooks: hooks})
	scenario := loginScenario(
		NewStep(stepdef.TypeGiven, KeywordGiven, "a registered user", stepLocation(3)),
	)

	failed := scenario.Run(r)

	assert.True(t, failed)
	assert.True(t, afterCalled)
	assert.Equal(t, types.StatusFailed, scenario.Status())
	assert.Equal(t, types.StatusUntested, scenario.Steps()[0].Status())
	assert.Contains(t, scenario.ErrorMessage(), "HOOK-ERROR in before_scenario: fixture missing")
	assert.Equal(t, 1, r.HookFailures())
}

func TestScenarioHookAndTagOrder(t *testing.T) {
	var order []string
	record := func(name string) runner.HookFunc {
		return func(c *scope.Context, args ...any) error {
			entry := name
			if len(args) > 0 {
				if tag, ok := args[0].(string); ok {
					entry = fmt.Sprintf("%s:%s", name, tag)
				}
			}
			order = append(order, entry)
			return nil
		}
	}
	hooks := runner.NewHookRegistry()
	require.NoError(t, hooks.Register(runner.HookBeforeTag, record("before_tag")))
	require.NoError(t, hooks.Register(runner.HookBeforeScenario, record("before_scenario")))
	require.NoError(t, hooks.Register(runner.HookBeforeStep, record("before_step")))
	require.NoError(t, hooks.Register(runner.HookAfterStep, record("after_step")))
	require.NoError(t, hooks.Register(runner.HookAfterScenario, record("after_scenario")))
	require.NoError(t, hooks.Register(runner.HookAfterTag, record("after_tag")))

	r := newModelRunner(t, runner.Config{Steps: loginSteps(t), Hooks: hooks})
	scenario := NewScenario("Successful login", stepLocation(2), []types.Tag{"smoke"},
		NewStep(stepdef.TypeGiven, KeywordGiven, "a registered user", stepLocation(3)),
	)

	require.False(t, scenario.Run(r))
	assert.Equal(t, []string{
		"before_tag:smoke",
		"before_scenario",
		"before_step",
		"after_step",
		"after_scenario",
		"after_tag:smoke",
	}, order)
}

func TestScenarioTagsVisibleInContext(t *testing.T) {
	var seen any
	hooks := runner.NewHookRegistry()
	require.NoError(t, hooks.Register(runner.HookBeforeScenario, func(c *scope.Context, args ...any) error {
		seen, _ = c.Get("tags")
		return nil
	}))
	r := newModelRunner(t, runner.Config{Steps: loginSteps(t), Hooks: hooks})

	feature := NewFeature("Login", "", stepLocation(1), []types.Tag{"auth"})
	scenario := NewScenario("Successful login", stepLocation(2), []types.Tag{"smoke"},
		NewStep(stepdef.TypeGiven, KeywordGiven, "a registered user", stepLocation(3)),
	)
	feature.AddScenario(scenario)

	require.False(t, scenario.Run(r))
	assert.Equal(t, []types.Tag{"auth", "smoke"}, seen)
}

func TestScenarioCleanupRunsOnPop(t *testing.T) {
	cleaned := false
	steps := stepdef.NewRegistry()
	steps.Given(`a temporary session`, func(c *scope.Context, args ...string) error {
		c.AddNamedCleanup("close_session", func() error {
			cleaned = true
			return nil
		})
		return nil
	})
	r := newModelRunner(t, runner.Config{Steps: steps})
	scenario := loginScenario(
		NewStep(stepdef.TypeGiven, KeywordGiven, "a temporary session", stepLocation(3)),
	)

	require.False(t, scenario.Run(r))
	assert.True(t, cleaned)
	assert.Equal(t, 1, r.Context().Depth())
}

func TestScenarioCleanupFailureFailsScenario(t *testing.T) {
	steps := stepdef.NewRegistry()
	steps.Given(`a temporary session`, func(c *scope.Context, args ...string) error {
		c.AddNamedCleanup("close_session", func() error {
			return errors.New("session still in use")
		})
		return nil
	})
	r := newModelRunner(t, runner.Config{Steps: steps, FailOnCleanupErrors: true})
	scenario := loginScenario(
		NewStep(stepdef.TypeGiven, KeywordGiven, "a temporary session", stepLocation(3)),
	)

	failed := scenario.Run(r)

	assert.True(t, failed)
	assert.Equal(t, types.StatusFailed, scenario.Status())
	assert.Contains(t, scenario.ErrorMessage(), "close_session")
	assert.Equal(t, 1, r.Context().CleanupErrors())
	// The layer is gone despite the failure.
	assert.Equal(t, 1, r.Context().Depth())
}

func TestScenarioEffectiveTagsAndSelection(t *testing.T) {
	feature := NewFeature("Login", "", stepLocation(1), []types.Tag{"smoke"})
	scenario := NewScenario("Work in progress", stepLocation(2), []types.Tag{"wip"})
	feature.AddScenario(scenario)

	assert.Equal(t, []types.Tag{"smoke", "wip"}, scenario.EffectiveTags())
	assert.True(t, scenario.ShouldRun(selectTags(t, "smoke")))
	assert.False(t, scenario.ShouldRun(selectTags(t, "smoke and not wip")))
	assert.True(t, scenario.ShouldRun(nil))
}
