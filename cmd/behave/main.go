package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	behave "github.com/tektronix/behave"
	"github.com/tektronix/behave/exitcodes"
	"github.com/tektronix/behave/flags"
	"github.com/tektronix/behave/logging"
	"github.com/tektronix/behave/service"
	"github.com/tektronix/behave/telemetry"
)

var (
	Version   = "v1.2.6"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "behave"
	app.Usage = "Behaviour-driven feature runner"
	app.Description = "behave discovers feature files and runs their scenarios against registered step definitions"
	app.ArgsUsage = "[paths...]"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Check for typed runtime errors
			if behave.IsRuntimeError(err) {
				// For runtime errors, use exit code 2
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if behave.IsTestFailureError(err) {
				// For failed runs, use exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up OpenTelemetry: %v\n", err)
		os.Exit(exitcodes.RuntimeErr)
	}
	defer shutdown()

	// Start CLI
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(exitcodes.RuntimeErr)
	}
}

func run(ctx *cli.Context) error {
	log := logging.NewLogger(os.Stderr, ctx.String(flags.LogLevel.Name), ctx.String(flags.LogFormat.Name))

	cfg, err := behave.NewConfig(ctx, log, ctx.Args().Slice()...)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return behave.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug().Str("baseDir", cfg.BaseDir).Strs("paths", cfg.Paths).Msg("Resolved configuration")

	// Start the health and metrics servers
	svc := service.New(cfg.Log)
	svc.Start(ctx.Context)
	defer svc.Shutdown()

	runCtx, cancel := context.WithCancelCause(ctx.Context)
	defer cancel(nil)

	app, err := behave.New(runCtx, cfg, Version, cancel)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return behave.NewRuntimeError(fmt.Errorf("failed to create behave: %w", err))
	}

	if err := app.Start(runCtx); err != nil {
		return err
	}
	if cfg.RunOnce {
		return nil
	}

	// Continuous mode: run until interrupted, then drain the periodic
	// runner before returning.
	<-runCtx.Done()
	if err := app.Stop(context.Background()); err != nil {
		cfg.Log.Error().Err(err).Msg("Error stopping behave")
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	return app.WaitForShutdown(waitCtx)
}
