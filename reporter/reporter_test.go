package reporter

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tektronix/behave/model"
	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/scope"
	"github.com/tektronix/behave/stepdef"
	"github.com/tektronix/behave/types"
)

func loginSteps() *stepdef.Registry {
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

func stepLocation(line int) types.Location {
	return types.Location{File: "features/login.feature.yaml", Line: line}
}

// ranLoginFeature runs a login feature with one passing and one failing
// scenario and returns it with its statuses filled in.
func ranLoginFeature(t *testing.T) *model.Feature {
	t.Helper()
	r, err := runner.NewModelRunner(runner.Config{Log: zerolog.Nop(), Steps: loginSteps()})
	require.NoError(t, err)

	feature := model.NewFeature("User login", "", stepLocation(1), nil)
	feature.AddScenario(model.NewScenario("Valid password", stepLocation(5), nil,
		model.NewStep(stepdef.TypeGiven, model.KeywordGiven, "a registered user", stepLocation(6)),
		model.NewStep(stepdef.TypeWhen, model.KeywordWhen, "the user signs in", stepLocation(7)),
		model.NewStep(stepdef.TypeThen, model.KeywordThen, "the dashboard is shown", stepLocation(8)),
	))
	feature.AddScenario(model.NewScenario("Bad password", stepLocation(10), nil,
		model.NewStep(stepdef.TypeGiven, model.KeywordGiven, "a registered user", stepLocation(11)),
		model.NewStep(stepdef.TypeWhen, model.KeywordWhen, "the user mistypes the password", stepLocation(12)),
		model.NewStep(stepdef.TypeThen, model.KeywordThen, "the dashboard is shown", stepLocation(13)),
	))

	feature.Run(r)
	return feature
}

func TestSummaryReporter(t *testing.T) {
	var out bytes.Buffer
	rep := NewSummaryReporter(Config{Log: zerolog.Nop(), Out: &out})

	rep.Feature(ranLoginFeature(t))
	rep.End()

	got := out.String()
	assert.Contains(t, got, "Failing scenarios:")
	assert.Contains(t, got, "features/login.feature.yaml:10  Bad password")
	assert.Contains(t, got, "1 features: 0 passed, 1 failed")
	assert.Contains(t, got, "2 scenarios: 1 passed, 1 failed")
	assert.Contains(t, got, "6 steps: 4 passed, 1 failed, 1 skipped")
	assert.Contains(t, got, "Took 0.0s")
}

func TestSummaryReporterAllPassing(t *testing.T) {
	r, err := runner.NewModelRunner(runner.Config{Log: zerolog.Nop(), Steps: loginSteps()})
	require.NoError(t, err)
	feature := model.NewFeature("User login", "", stepLocation(1), nil)
	feature.AddScenario(model.NewScenario("Valid password", stepLocation(5), nil,
		model.NewStep(stepdef.TypeGiven, model.KeywordGiven, "a registered user", stepLocation(6)),
	))
	feature.Run(r)

	var out bytes.Buffer
	rep := NewSummaryReporter(Config{Log: zerolog.Nop(), Out: &out})
	rep.Feature(feature)
	rep.End()

	got := out.String()
	assert.NotContains(t, got, "Failing scenarios:")
	assert.Contains(t, got, "1 features: 1 passed")
	assert.Contains(t, got, "1 scenarios: 1 passed")
}

func TestTableReporter(t *testing.T) {
	var out bytes.Buffer
	rep := NewTableReporter(Config{Log: zerolog.Nop(), Out: &out})

	rep.Feature(ranLoginFeature(t))
	rep.End()

	got := out.String()
	assert.Contains(t, got, "Feature Run Results")
	assert.Contains(t, got, "User login")
	assert.Contains(t, got, "├── Valid password")
	assert.Contains(t, got, "└── Bad password")
	assert.Contains(t, got, "✓ passed")
	assert.Contains(t, got, "✗ failed")
	assert.Contains(t, got, "bad credentials")
	assert.Contains(t, got, "TOTAL")
}

func TestUndefinedSnippets(t *testing.T) {
	steps := []runner.UndefinedStep{
		{StepType: "given", Keyword: "Given", Text: `a user "bob" exists`},
		{StepType: "given", Keyword: "Given", Text: `a user "bob" exists`},
		{StepType: "when", Keyword: "And", Text: "the price is $5"},
	}

	got := UndefinedSnippets(steps)

	assert.Contains(t, got, "You can implement step definitions for undefined steps")
	assert.Contains(t, got, "steps.Given(`a user \"bob\" exists`")
	assert.Contains(t, got, `return errors.New("STEP: Given a user \"bob\" exists")`)
	assert.Contains(t, got, "steps.When(`the price is \\$5`")
	assert.Equal(t, 1, strings.Count(got, "steps.Given("))
}

func TestUndefinedSnippetsEmpty(t *testing.T) {
	assert.Empty(t, UndefinedSnippets(nil))
}

func TestGetResultString(t *testing.T) {
	assert.Equal(t, "✓ passed", getResultString(types.StatusPassed))
	assert.Equal(t, "- skipped", getResultString(types.StatusSkipped))
	assert.Equal(t, "- untested", getResultString(types.StatusUntested))
	assert.Equal(t, "✗ failed", getResultString(types.StatusFailed))
	assert.Equal(t, "✗ error", getResultString(types.StatusError))
	assert.Equal(t, "✗ undefined", getResultString(types.StatusUndefined))
}

func TestKeyErrorLine(t *testing.T) {
	assert.Empty(t, keyErrorLine(""))
	assert.Equal(t, "bad credentials", keyErrorLine("bad credentials"))
	assert.Equal(t, "first line", keyErrorLine("first line\nsecond line"))
	assert.Equal(t, "panic: nil session", keyErrorLine("step blew up\npanic: nil session\ngoroutine 1"))
	long := strings.Repeat("x", 100)
	assert.Equal(t, long[:70]+"...", keyErrorLine(long))
}
