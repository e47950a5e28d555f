package behave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tektronix/behave/capture"
	"github.com/tektronix/behave/formatter"
	"github.com/tektronix/behave/loader"
	"github.com/tektronix/behave/logging"
	"github.com/tektronix/behave/reporter"
	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/scope"
	"github.com/tektronix/behave/stepdef"
	"github.com/tektronix/behave/tags"
	"github.com/tektronix/behave/types"
)

// RunResult summarizes one run of the feature suite.
type RunResult struct {
	RunID     string
	Failed    bool
	Stats     *types.RunStats
	Undefined []runner.UndefinedStep
	LogDir    string
}

// String renders the end-of-run tally of the result.
func (r *RunResult) String() string {
	if r.Stats == nil {
		return "feature run failed"
	}
	return strings.TrimSuffix(r.Stats.Text(), "\n")
}

// Runner wires one feature run end to end: it discovers and loads the
// feature files, installs the default hooks and drives a ModelRunner
// over the loaded model with the configured formatters and reporters.
type Runner struct {
	cfg   *Config
	steps *stepdef.Registry
	hooks *runner.HookRegistry
}

// NewRunner creates a Runner from the application config and the
// registered step definitions and hooks. Nil registries are replaced
// with empty ones.
func NewRunner(cfg *Config, steps *stepdef.Registry, hooks *runner.HookRegistry) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if steps == nil {
		steps = stepdef.NewRegistry()
	}
	if hooks == nil {
		hooks = runner.NewHookRegistry()
	}
	return &Runner{cfg: cfg, steps: steps, hooks: hooks}, nil
}

// Run executes the feature suite once. The result carries the verdict;
// the error reports runtime failures such as unreadable feature files.
// Each call builds a fresh ModelRunner, so a Runner may run repeatedly.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	runID := runner.NewRunID()
	log := r.cfg.Log.With().Str("run_id", runID).Logger()

	ld := loader.New(loader.Config{Log: log})
	files, err := r.featureFiles()
	if err != nil {
		return nil, err
	}
	features, err := ld.LoadFeatures(files)
	if err != nil {
		return nil, err
	}
	log.Info().Int("features", len(features)).Msg("Loaded feature files")

	selector, err := parseTagSelector(r.cfg.Tags)
	if err != nil {
		return nil, err
	}

	out, closeOut, err := r.formatterOutput()
	if err != nil {
		return nil, err
	}
	defer closeOut()

	fm, err := formatter.New(r.cfg.Format, out)
	if err != nil {
		return nil, err
	}

	fileLogger, err := logging.NewFileLogger(r.cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}

	runLog := log
	var logWriter *capture.LogRouter
	captureLog := !r.cfg.NoLogCapture
	if captureLog {
		// The run logger writes through the router so active log
		// capture can pull its output into the capture buffer.
		logWriter = capture.NewLogRouter(os.Stderr)
		runLog = logging.NewLogger(logWriter, r.cfg.LogLevel, r.cfg.LogFormat).
			With().Str("run_id", runID).Logger()
	}

	if !r.hooks.Registered(runner.HookBeforeAll) {
		cfg := r.cfg
		err := r.hooks.Register(runner.HookBeforeAll, func(c *scope.Context, args ...any) error {
			cfg.SetupLogging()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	runnable := make([]runner.Feature, 0, len(features))
	for _, f := range features {
		runnable = append(runnable, f)
	}

	model, err := runner.NewModelRunner(runner.Config{
		Log:                 runLog,
		RunID:               runID,
		DryRun:              r.cfg.DryRun,
		StopOnFailure:       r.cfg.StopOnFailure,
		Verbose:             r.cfg.Verbose,
		FailOnCleanupErrors: r.cfg.FailOnCleanupErrors,
		CaptureStdout:       !r.cfg.NoCapture,
		CaptureStderr:       !r.cfg.NoCaptureStderr,
		CaptureLog:          captureLog,
		LogWriter:           logWriter,
		Selector:            selector,
		Features:            runnable,
		Steps:               r.steps,
		Hooks:               r.hooks,
		Formatters:          []formatter.Formatter{fm},
		Reporters: []runner.Reporter{
			reporter.NewSummaryReporter(reporter.Config{Log: log, Out: os.Stdout}),
			reporter.NewTableReporter(reporter.Config{Log: log, Out: os.Stdout}),
			logging.NewFileReporter(log, fileLogger),
		},
	})
	if err != nil {
		return nil, err
	}

	model.Context().SetRootAttribute("config", r.cfg)

	failed, err := model.RunModel(ctx)
	if err != nil {
		return nil, err
	}

	undefined := model.UndefinedSteps()
	if snippets := reporter.UndefinedSnippets(undefined); snippets != "" {
		fmt.Fprint(os.Stdout, snippets)
	}

	stats := types.NewRunStats()
	for _, f := range features {
		f.CountInto(stats)
		stats.Duration += f.Duration()
	}

	result := &RunResult{
		RunID:     runID,
		Failed:    failed,
		Stats:     stats,
		Undefined: undefined,
		LogDir:    fileLogger.GetBaseDir(),
	}
	log.Info().Bool("failed", failed).Str("log_dir", result.LogDir).Msg("Feature run finished")
	return result, nil
}

// featureFiles resolves the configured paths to the feature files of the
// run. Directories are searched recursively; files are taken as given.
func (r *Runner) featureFiles() ([]string, error) {
	var files []string
	for _, p := range r.cfg.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("feature path: %w", err)
		}
		if info.IsDir() {
			found, err := loader.DiscoverFeatureFiles(p)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		files = append(files, p)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no feature files in '%s'", r.cfg.BaseDir)
	}
	return files, nil
}

func (r *Runner) formatterOutput() (io.Writer, func(), error) {
	if r.cfg.OutputFile == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(r.cfg.OutputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file '%s': %w", r.cfg.OutputFile, err)
	}
	closeOut := func() {
		if err := f.Close(); err != nil {
			r.cfg.Log.Error().Err(err).Msg("Failed to close formatter output")
		}
	}
	return f, closeOut, nil
}

// parseTagSelector combines the configured tag expressions into one
// selector. Repeated expressions are joined with "and", so every
// expression has to match.
func parseTagSelector(sources []string) (*tags.Expression, error) {
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		if strings.TrimSpace(src) == "" {
			continue
		}
		parts = append(parts, "("+src+")")
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return tags.Parse(strings.Join(parts, " and "))
}
