// Package flags declares the command line surface of behave.
package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "BEHAVE"

// prefixEnvVars prepends the application prefix to an environment
// variable name.
func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Tags = &cli.StringSliceFlag{
		Name:    "tags",
		EnvVars: prefixEnvVars("TAGS"),
		Usage:   "Only run features or scenarios whose tags match the expression (e.g. 'smoke and not wip'). May be given more than once; the expressions are combined with 'and'.",
	}
	Format = &cli.StringFlag{
		Name:    "format",
		Value:   "plain",
		EnvVars: prefixEnvVars("FORMAT"),
		Usage:   "Formatter to use: plain, progress or json",
	}
	Outfile = &cli.StringFlag{
		Name:    "outfile",
		Value:   "",
		EnvVars: prefixEnvVars("OUTFILE"),
		Usage:   "Write formatter output to the given file instead of stdout",
	}
	DryRun = &cli.BoolFlag{
		Name:    "dry-run",
		Value:   false,
		EnvVars: prefixEnvVars("DRY_RUN"),
		Usage:   "Load and check the features without running any steps",
	}
	Stop = &cli.BoolFlag{
		Name:    "stop",
		Value:   false,
		EnvVars: prefixEnvVars("STOP"),
		Usage:   "Stop running at the first failing feature",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Value:   false,
		EnvVars: prefixEnvVars("VERBOSE"),
		Usage:   "Emit attribute masking warnings and other diagnostics",
	}
	NoCapture = &cli.BoolFlag{
		Name:    "no-capture",
		Value:   false,
		EnvVars: prefixEnvVars("NO_CAPTURE"),
		Usage:   "Do not capture stdout while steps and hooks run",
	}
	NoCaptureStderr = &cli.BoolFlag{
		Name:    "no-capture-stderr",
		Value:   false,
		EnvVars: prefixEnvVars("NO_CAPTURE_STDERR"),
		Usage:   "Do not capture stderr while steps and hooks run",
	}
	NoLogCapture = &cli.BoolFlag{
		Name:    "no-logcapture",
		Value:   false,
		EnvVars: prefixEnvVars("NO_LOGCAPTURE"),
		Usage:   "Do not capture log output while steps and hooks run",
	}
	FailOnCleanupErrors = &cli.BoolFlag{
		Name:    "fail-on-cleanup-errors",
		Value:   true,
		EnvVars: prefixEnvVars("FAIL_ON_CLEANUP_ERRORS"),
		Usage:   "Treat cleanup errors as scenario failures",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "",
		EnvVars: prefixEnvVars("LOG_DIR"),
		Usage:   "Directory to store run logs",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between feature runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "The lowest log level that will be output: trace, debug, info, warn or error",
	}
	LogFormat = &cli.StringFlag{
		Name:    "log.format",
		Value:   "text",
		EnvVars: prefixEnvVars("LOG_FORMAT"),
		Usage:   "Format the log output. Supported formats: text, json",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Tags,
	Format,
	Outfile,
	DryRun,
	Stop,
	Verbose,
	NoCapture,
	NoCaptureStderr,
	NoLogCapture,
	FailOnCleanupErrors,
	LogDir,
	RunInterval,
	LogLevel,
	LogFormat,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
