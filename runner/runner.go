// Package runner drives the execution of a loaded feature model: it owns
// the context store, the capture controller, the hook registry and the
// run loop that feeds features to formatters and reporters.
package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tektronix/behave/capture"
	"github.com/tektronix/behave/formatter"
	"github.com/tektronix/behave/metrics"
	"github.com/tektronix/behave/scope"
	"github.com/tektronix/behave/stepdef"
	"github.com/tektronix/behave/tags"
	"github.com/tektronix/behave/types"
)

// Config configures a ModelRunner.
type Config struct {
	Log   zerolog.Logger
	RunID string

	DryRun              bool
	StopOnFailure       bool
	Verbose             bool
	FailOnCleanupErrors bool

	CaptureStdout bool
	CaptureStderr bool
	CaptureLog    bool
	// LogWriter is the router the run logger writes through; required
	// when CaptureLog is set.
	LogWriter *capture.LogRouter

	// Selector filters features and scenarios by their tags. Nil
	// selects everything.
	Selector *tags.Expression

	Features   []Feature
	Steps      *stepdef.Registry
	Hooks      *HookRegistry
	Formatters []formatter.Formatter
	Reporters  []Reporter

	Tracer trace.Tracer
}

// UndefinedStep identifies a step that had no matching definition.
// StepType is the registry type the lookup failed under, so snippet
// generators can propose a registration that would have matched.
type UndefinedStep struct {
	StepType string
	Keyword  string
	Text     string
	Location types.Location
}

type runState int

const (
	stateNotStarted runState = iota
	stateRunning
	stateAfterAll
	stateDone
)

// ModelRunner executes a feature collection once. It is single use: a
// second RunModel call on the same runner fails.
type ModelRunner struct {
	cfg   Config
	log   zerolog.Logger
	runID string

	scope   *scope.Context
	capture *capture.Controller
	hooks   *HookRegistry
	steps   *stepdef.Registry

	formatters []formatter.Formatter
	reporters  []Reporter
	tracer     trace.Tracer

	hookFailures int
	undefined    []UndefinedStep
	state        runState
}

// NewModelRunner builds a runner and its context store from the
// configuration.
func NewModelRunner(cfg Config) (*ModelRunner, error) {
	if cfg.CaptureLog && cfg.LogWriter == nil {
		return nil, fmt.Errorf("log capture requires a log writer")
	}
	if cfg.Steps == nil {
		cfg.Steps = stepdef.NewRegistry()
	}
	if cfg.Hooks == nil {
		cfg.Hooks = NewHookRegistry()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("model runner")
	}

	runID := cfg.RunID
	log := cfg.Log.With().Str("run_id", runID).Logger()

	sc := scope.NewContext(scope.Config{
		Log:                 log,
		Verbose:             cfg.Verbose,
		FailOnCleanupErrors: cfg.FailOnCleanupErrors,
		OnCleanupError: func(_ *scope.Context, name string, err error) {
			log.Error().Err(err).Msgf("CLEANUP-ERROR in %s: %v", name, err)
			metrics.RecordCleanupError(runID)
		},
	})

	return &ModelRunner{
		cfg:        cfg,
		log:        log,
		runID:      runID,
		scope:      sc,
		hooks:      cfg.Hooks,
		steps:      cfg.Steps,
		formatters: cfg.Formatters,
		reporters:  cfg.Reporters,
		tracer:     cfg.Tracer,
		capture: capture.NewController(capture.Config{
			Log:           log,
			CaptureStdout: cfg.CaptureStdout,
			CaptureStderr: cfg.CaptureStderr,
			CaptureLog:    cfg.CaptureLog,
			LogWriter:     cfg.LogWriter,
		}),
	}, nil
}

// RunModel executes the feature collection and returns true when the
// run failed: a feature failed, the run was aborted, a hook failed, new
// undefined steps appeared, or root cleanups failed. Cancelling ctx
// aborts the run at the next feature boundary.
func (r *ModelRunner) RunModel(ctx context.Context) (bool, error) {
	if r.state != stateNotStarted {
		return true, fmt.Errorf("model runner is single use: run was already started")
	}
	r.state = stateRunning
	start := time.Now()
	r.hookFailures = 0

	r.SetupCapture()
	defer r.capture.Teardown()

	r.RunHook(HookBeforeAll)

	runFeature := !r.Aborted()
	failedCount := 0
	undefinedBaseline := len(r.undefined)

	for _, feature := range r.cfg.Features {
		if runFeature && ctx.Err() != nil {
			// Cooperative interrupt, honored between features only.
			r.SetAborted(true)
			runFeature = false
		}
		if runFeature {
			for _, f := range r.formatters {
				f.URI(feature.Filename())
			}
			_, span := r.tracer.Start(ctx, fmt.Sprintf("feature %s", feature.Name()))
			failed := feature.Run(r)
			span.End()
			if failed {
				failedCount++
				if r.cfg.StopOnFailure || r.Aborted() {
					runFeature = false
				}
			}
		}

		// Reporters see every feature, run or not, so summaries can
		// account for untested ones.
		for _, reporter := range r.reporters {
			reporter.Feature(feature)
		}
	}

	r.state = stateAfterAll
	r.RunHook(HookAfterAll)

	// Root cleanups are drained without popping the root layer.
	cleanupsFailed := false
	if err := r.scope.DrainCleanups(); err != nil {
		r.log.Error().Err(err).Msg("root cleanups failed")
		cleanupsFailed = true
	}

	if r.Aborted() {
		fmt.Fprint(os.Stdout, "\nABORTED: By user.\n")
	}
	for _, f := range r.formatters {
		if err := f.Close(); err != nil {
			r.log.Error().Err(err).Msg("closing formatter")
		}
	}
	for _, reporter := range r.reporters {
		reporter.End()
	}
	r.state = stateDone

	failed := failedCount > 0 || r.Aborted() || r.hookFailures > 0 ||
		len(r.undefined) > undefinedBaseline || cleanupsFailed
	metrics.RecordRun(r.runID, failed, time.Since(start))
	return failed, nil
}

// Context returns the context store of the run.
func (r *ModelRunner) Context() *scope.Context {
	return r.scope
}

// Steps returns the step registry.
func (r *ModelRunner) Steps() *stepdef.Registry {
	return r.steps
}

// Formatters returns the formatters receiving run events.
func (r *ModelRunner) Formatters() []formatter.Formatter {
	return r.formatters
}

// Log returns the run logger.
func (r *ModelRunner) Log() zerolog.Logger {
	return r.log
}

// RunID returns the unique id of this run.
func (r *ModelRunner) RunID() string {
	return r.runID
}

// DryRun reports whether steps and hooks are skipped.
func (r *ModelRunner) DryRun() bool {
	return r.cfg.DryRun
}

// Verbose reports whether verbose diagnostics are enabled.
func (r *ModelRunner) Verbose() bool {
	return r.cfg.Verbose
}

// StopOnFailure reports whether the run stops after the first failure.
func (r *ModelRunner) StopOnFailure() bool {
	return r.cfg.StopOnFailure
}

// Selector returns the tag selection expression, which may be nil.
func (r *ModelRunner) Selector() *tags.Expression {
	return r.cfg.Selector
}

// Aborted reports whether the run was aborted.
func (r *ModelRunner) Aborted() bool {
	return r.scope.Bool("aborted")
}

// SetAborted records the abort flag on the root layer.
func (r *ModelRunner) SetAborted(aborted bool) {
	r.scope.SetRootAttribute("aborted", aborted)
}

// HookFailures returns the number of hook failures seen so far.
func (r *ModelRunner) HookFailures() int {
	return r.hookFailures
}

// AddUndefinedStep records a step without a matching definition.
func (r *ModelRunner) AddUndefinedStep(stepType, keyword, text string, location types.Location) {
	r.undefined = append(r.undefined, UndefinedStep{StepType: stepType, Keyword: keyword, Text: text, Location: location})
	metrics.RecordUndefinedStep(r.runID)
}

// UndefinedSteps returns the undefined steps recorded so far.
func (r *ModelRunner) UndefinedSteps() []UndefinedStep {
	out := make([]UndefinedStep, len(r.undefined))
	copy(out, r.undefined)
	return out
}

// SetupCapture resets the capture buffers and attaches them to the
// context.
func (r *ModelRunner) SetupCapture() {
	r.capture.Reset()
	r.capture.Setup(r.scope)
}

// StartCapture begins capturing the configured streams.
func (r *ModelRunner) StartCapture() error {
	return r.capture.Start()
}

// StopCapture restores the captured streams.
func (r *ModelRunner) StopCapture() {
	r.capture.Stop()
}

// TeardownCapture releases all capture plumbing.
func (r *ModelRunner) TeardownCapture() {
	r.capture.Teardown()
}

// CaptureReport renders the captured output block for failing steps.
func (r *ModelRunner) CaptureReport() string {
	return r.capture.Report()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}
