package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tektronix/behave/formatter"
	"github.com/tektronix/behave/scope"
	"github.com/tektronix/behave/types"
)

type fakeFeature struct {
	fakeStatement
	name   string
	file   string
	tags   []types.Tag
	status types.Status
	fail   bool
	runs   int
	onRun  func(r *ModelRunner)
}

func (f *fakeFeature) Name() string             { return f.name }
func (f *fakeFeature) Filename() string         { return f.file }
func (f *fakeFeature) Location() types.Location { return types.Location{File: f.file, Line: 1} }
func (f *fakeFeature) Tags() []types.Tag        { return f.tags }
func (f *fakeFeature) Status() types.Status     { return f.status }
func (f *fakeFeature) Duration() time.Duration  { return 0 }

func (f *fakeFeature) Run(r *ModelRunner) bool {
	f.runs++
	if f.onRun != nil {
		f.onRun(r)
	}
	if f.fail {
		f.status = types.StatusFailed
		return true
	}
	f.status = types.StatusPassed
	return false
}

func (f *fakeFeature) CountInto(stats *types.RunStats) {
	stats.Features.Increment(f.status)
}

type fakeReporter struct {
	seen  []string
	ended bool
}

func (r *fakeReporter) Feature(f Feature) { r.seen = append(r.seen, f.Name()) }
func (r *fakeReporter) End()              { r.ended = true }

type fakeFormatter struct {
	uris   []string
	closed bool
}

func (f *fakeFormatter) URI(path string)                 { f.uris = append(f.uris, path) }
func (f *fakeFormatter) Feature(formatter.FeatureInfo)   {}
func (f *fakeFormatter) Scenario(formatter.ScenarioInfo) {}
func (f *fakeFormatter) Step(formatter.StepInfo)         {}
func (f *fakeFormatter) Close() error                    { f.closed = true; return nil }

func TestNewModelRunnerValidation(t *testing.T) {
	_, err := NewModelRunner(Config{CaptureLog: true})
	require.ErrorContains(t, err, "log capture requires a log writer")
}

func TestNewModelRunnerDefaults(t *testing.T) {
	r := newTestRunner(t, Config{})
	assert.NotEmpty(t, r.RunID())
	assert.NotNil(t, r.Steps())
	assert.NotNil(t, r.Context())
	assert.Equal(t, 1, r.Context().Depth())
}

func TestRunModelPassing(t *testing.T) {
	one := &fakeFeature{name: "Login", file: "features/login.feature.yaml"}
	two := &fakeFeature{name: "Logout", file: "features/logout.feature.yaml"}
	reporter := &fakeReporter{}
	format := &fakeFormatter{}

	r := newTestRunner(t, Config{
		Features:   []Feature{one, two},
		Reporters:  []Reporter{reporter},
		Formatters: []formatter.Formatter{format},
	})
	failed, err := r.RunModel(context.Background())

	require.NoError(t, err)
	assert.False(t, failed)
	assert.Equal(t, 1, one.runs)
	assert.Equal(t, 1, two.runs)
	assert.Equal(t, []string{"Login", "Logout"}, reporter.seen)
	assert.True(t, reporter.ended)
	assert.Equal(t, []string{"features/login.feature.yaml", "features/logout.feature.yaml"}, format.uris)
	assert.True(t, format.closed)
}

func TestRunModelFeatureFailure(t *testing.T) {
	one := &fakeFeature{name: "Login", fail: true}
	two := &fakeFeature{name: "Logout"}

	r := newTestRunner(t, Config{Features: []Feature{one, two}})
	failed, err := r.RunModel(context.Background())

	require.NoError(t, err)
	assert.True(t, failed)
	// Without stop-on-failure the remaining features still run.
	assert.Equal(t, 1, two.runs)
}

func TestRunModelStopOnFailure(t *testing.T) {
	one := &fakeFeature{name: "Login", fail: true}
	two := &fakeFeature{name: "Logout"}
	reporter := &fakeReporter{}
	format := &fakeFormatter{}

	r := newTestRunner(t, Config{
		Features:      []Feature{one, two},
		Reporters:     []Reporter{reporter},
		Formatters:    []formatter.Formatter{format},
		StopOnFailure: true,
	})
	failed, err := r.RunModel(context.Background())

	require.NoError(t, err)
	assert.True(t, failed)
	assert.Equal(t, 1, one.runs)
	assert.Zero(t, two.runs)
	// Skipped features are still reported, but never announced to
	// formatters.
	assert.Equal(t, []string{"Login", "Logout"}, reporter.seen)
	assert.Len(t, format.uris, 1)
}

func TestRunModelBrokenBeforeAllSkipsFeatures(t *testing.T) {
	hooks := NewHookRegistry()
	require.NoError(t, hooks.Register(HookBeforeAll, func(c *scope.Context, args ...any) error {
		return errors.New("environment not ready")
	}))
	one := &fakeFeature{name: "Login"}
	two := &fakeFeature{name: "Logout"}
	reporter := &fakeReporter{}

	r := newTestRunner(t, Config{
		Features:  []Feature{one, two},
		Reporters: []Reporter{reporter},
		Hooks:     hooks,
	})
	failed, err := r.RunModel(context.Background())

	require.NoError(t, err)
	assert.True(t, failed)
	assert.True(t, r.Aborted())
	assert.Zero(t, one.runs)
	assert.Zero(t, two.runs)
	assert.Equal(t, []string{"Login", "Logout"}, reporter.seen)
	assert.Equal(t, 1, r.HookFailures())
}

func TestRunModelHookFailureFailsVerdict(t *testing.T) {
	hooks := NewHookRegistry()
	require.NoError(t, hooks.Register(HookAfterAll, func(c *scope.Context, args ...any) error {
		return errors.New("teardown broke")
	}))
	feature := &fakeFeature{name: "Login"}

	r := newTestRunner(t, Config{Features: []Feature{feature}, Hooks: hooks})
	failed, err := r.RunModel(context.Background())

	require.NoError(t, err)
	assert.True(t, failed)
	assert.Equal(t, 1, feature.runs)
	assert.Equal(t, types.StatusPassed, feature.Status())
}

func TestRunModelUndefinedStepsFailVerdict(t *testing.T) {
	feature := &fakeFeature{name: "Login"}
	feature.onRun = func(r *ModelRunner) {
		r.AddUndefinedStep("given", "Given", "a step nobody wrote", types.Location{File: "features/login.feature.yaml", Line: 7})
	}

	r := newTestRunner(t, Config{Features: []Feature{feature}})
	failed, err := r.RunModel(context.Background())

	require.NoError(t, err)
	assert.True(t, failed)
	require.Len(t, r.UndefinedSteps(), 1)
	assert.Equal(t, "a step nobody wrote", r.UndefinedSteps()[0].Text)
}

func TestRunModelRootCleanupFailureFailsVerdict(t *testing.T) {
	ran := false
	feature := &fakeFeature{name: "Login"}
	feature.onRun = func(r *ModelRunner) {
		r.Context().AddNamedCleanup("drop_database", func() error {
			ran = true
			return errors.New("database still in use")
		})
	}

	r := newTestRunner(t, Config{Features: []Feature{feature}, FailOnCleanupErrors: true})
	failed, err := r.RunModel(context.Background())

	require.NoError(t, err)
	assert.True(t, failed)
	assert.True(t, ran)
	assert.Equal(t, 1, r.Context().CleanupErrors())
	// The root layer survives the drain.
	assert.Equal(t, 1, r.Context().Depth())
}

func TestRunModelRootCleanupFailureTolerated(t *testing.T) {
	feature := &fakeFeature{name: "Login"}
	feature.onRun = func(r *ModelRunner) {
		r.Context().AddNamedCleanup("drop_database", func() error {
			return errors.New("database still in use")
		})
	}

	r := newTestRunner(t, Config{Features: []Feature{feature}})
	failed, err := r.RunModel(context.Background())

	require.NoError(t, err)
	assert.False(t, failed)
	assert.Equal(t, 1, r.Context().CleanupErrors())
}

func TestRunModelSingleUse(t *testing.T) {
	r := newTestRunner(t, Config{})
	_, err := r.RunModel(context.Background())
	require.NoError(t, err)

	failed, err := r.RunModel(context.Background())
	require.ErrorContains(t, err, "single use")
	assert.True(t, failed)
}

func TestRunModelCancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feature := &fakeFeature{name: "Login"}
	reporter := &fakeReporter{}
	r := newTestRunner(t, Config{Features: []Feature{feature}, Reporters: []Reporter{reporter}})
	failed, err := r.RunModel(ctx)

	require.NoError(t, err)
	assert.True(t, failed)
	assert.True(t, r.Aborted())
	assert.Zero(t, feature.runs)
	assert.Equal(t, []string{"Login"}, reporter.seen)
}

func TestRunModelCancelStopsBetweenFeatures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	one := &fakeFeature{name: "Login", onRun: func(r *ModelRunner) { cancel() }}
	two := &fakeFeature{name: "Logout"}
	r := newTestRunner(t, Config{Features: []Feature{one, two}})
	failed, err := r.RunModel(ctx)

	require.NoError(t, err)
	assert.True(t, failed)
	assert.Equal(t, 1, one.runs)
	assert.Zero(t, two.runs)
	assert.True(t, r.Aborted())
}
