// Package behave is a behaviour-driven feature runner: it loads YAML
// feature files, executes their scenarios against registered step
// definitions and reports the results. The App type runs the suite as a
// service, once or at a fixed interval.
package behave

import (
	"context"
	"errors"
	"os"
	"sync/atomic"

	"github.com/urfave/cli/v2"

	"github.com/tektronix/behave/exitcodes"
	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/stepdef"
)

// App runs the feature suite as a service: immediately on start and, in
// continuous mode, again at the configured interval.
type App struct {
	ctx       context.Context
	config    *Config
	version   string
	runner    *Runner
	steps     *stepdef.Registry
	hooks     *runner.HookRegistry
	scheduler RunScheduler

	result  atomic.Pointer[RunResult]
	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the behave service. Step definitions and hooks are
// registered through the Steps and Hooks registries before Start.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*App, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug().
		Str("baseDir", config.BaseDir).
		Strs("paths", config.Paths).
		Dur("runInterval", config.RunInterval).
		Bool("runOnce", config.RunOnce).
		Bool("dryRun", config.DryRun).
		Msg("Creating behave with config")

	app := &App{
		ctx:              ctx,
		config:           config,
		version:          version,
		steps:            stepdef.NewRegistry(),
		hooks:            runner.NewHookRegistry(),
		scheduler:        NewDefaultRunScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}

	r, err := NewRunner(config, app.steps, app.hooks)
	if err != nil {
		return nil, err
	}
	app.runner = r
	app.scheduler.RegisterCallback(app.runFeatures)

	return app, nil
}

// Steps returns the step definition registry of the suite.
func (a *App) Steps() *stepdef.Registry {
	return a.steps
}

// Hooks returns the hook registry of the suite.
func (a *App) Hooks() *runner.HookRegistry {
	return a.hooks
}

// Result returns the result of the most recent run, or nil before the
// first run finished.
func (a *App) Result() *RunResult {
	return a.result.Load()
}

// Start runs the feature suite, periodically when a run interval is
// configured. In run-once mode it returns the verdict of the single run.
func (a *App) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error().Interface("error", r).Msg("Runtime error occurred")
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx
	a.running.Store(true)

	if a.config.RunOnce {
		a.config.Log.Info().Msg("Starting behave in run-once mode")
	} else {
		a.config.Log.Info().Dur("interval", a.config.RunInterval).Msg("Starting behave in continuous mode")
	}

	if err := a.scheduler.Start(ctx); err != nil {
		// Runtime errors from the first run surface here in both modes.
		a.config.Log.Error().Err(err).Msg("Runtime error running features")
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if a.config.RunOnce {
		a.config.Log.Info().Msg("Feature run completed, exiting (run-once mode)")

		// Check if the run failed and return the appropriate exit code
		if result := a.result.Load(); result != nil && result.Failed {
			a.config.Log.Warn().Msg("Run-once feature run completed with failures, returning exit code 1")
			return NewTestFailureError(result.String())
		}

		// Only needed in run-once mode when the suite passed
		if a.shutdownCallback != nil {
			go func() {
				a.shutdownCallback(nil)
			}()
		}
	}
	return nil
}

// Stop stops the service.
func (a *App) Stop(ctx context.Context) error {
	a.running.Store(false)
	return a.scheduler.Stop()
}

// Stopped returns true if the service is stopped.
func (a *App) Stopped() bool {
	return !a.running.Load()
}

// WaitForShutdown blocks until the periodic runner goroutines have
// terminated or the context expires.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.scheduler.WaitForShutdown(ctx)
}

// runFeatures executes one run of the suite and records its result.
func (a *App) runFeatures() error {
	a.config.Log.Info().Msg("Running features...")
	result, err := a.runner.Run(a.ctx)
	if err != nil {
		return err
	}
	a.result.Store(result)
	a.config.Log.Info().
		Str("run_id", result.RunID).
		Bool("failed", result.Failed).
		Str("log_dir", result.LogDir).
		Msg("Feature run completed")
	return nil
}
