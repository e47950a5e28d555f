package behave

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/tektronix/behave/flags"
	"github.com/tektronix/behave/formatter"
	"github.com/tektronix/behave/logging"
)

const (
	// ConfigFileName is the project configuration file looked up at the
	// base directory.
	ConfigFileName = "behave.yaml"
	// FeaturesDirName is the conventional feature directory and the
	// default path when none is given.
	FeaturesDirName = "features"
)

// Config holds the application configuration
type Config struct {
	BaseDir             string        // Project root holding behave.yaml and the features directory
	Paths               []string      // Feature files or directories to run
	Tags                []string      // Tag expressions selecting features and scenarios
	Format              string        // Formatter name: plain, progress or json
	OutputFile          string        // Formatter output file; stdout when empty
	DryRun              bool          // Load and check features without running steps
	StopOnFailure       bool          // Stop the run at the first failing feature
	Verbose             bool          // Emit attribute masking warnings
	NoCapture           bool          // Disable stdout capture
	NoCaptureStderr     bool          // Disable stderr capture
	NoLogCapture        bool          // Disable log capture
	FailOnCleanupErrors bool          // Treat cleanup errors as scenario failures
	LogDir              string        // Directory to store run logs
	RunInterval         time.Duration // Interval between feature runs
	RunOnce             bool          // Indicates if the service should exit after one run
	LogLevel            string        // Log level for the run logger
	LogFormat           string        // Log format for the run logger
	Log                 zerolog.Logger
}

// NewConfig creates a new Config from cli context. The paths are the
// feature files or directories to run; when none are given the
// conventional "features" directory is used.
func NewConfig(ctx *cli.Context, log zerolog.Logger, paths ...string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if len(paths) == 0 {
		paths = []string{FeaturesDirName}
	}

	absPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for feature path '%s': %w", p, err)
		}
		absPaths = append(absPaths, abs)
	}

	baseDir, err := ResolveBaseDir(absPaths[0])
	if err != nil {
		return nil, err
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	cfg := &Config{
		BaseDir:             baseDir,
		Paths:               absPaths,
		Tags:                ctx.StringSlice(flags.Tags.Name),
		Format:              ctx.String(flags.Format.Name),
		OutputFile:          ctx.String(flags.Outfile.Name),
		DryRun:              ctx.Bool(flags.DryRun.Name),
		StopOnFailure:       ctx.Bool(flags.Stop.Name),
		Verbose:             ctx.Bool(flags.Verbose.Name),
		NoCapture:           ctx.Bool(flags.NoCapture.Name),
		NoCaptureStderr:     ctx.Bool(flags.NoCaptureStderr.Name),
		NoLogCapture:        ctx.Bool(flags.NoLogCapture.Name),
		FailOnCleanupErrors: ctx.Bool(flags.FailOnCleanupErrors.Name),
		LogDir:              ctx.String(flags.LogDir.Name),
		RunInterval:         runInterval,
		RunOnce:             runInterval == 0,
		LogLevel:            ctx.String(flags.LogLevel.Name),
		LogFormat:           ctx.String(flags.LogFormat.Name),
		Log:                 log,
	}

	fileCfg, err := loadConfigFile(baseDir)
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		applyFileDefaults(ctx, cfg, fileCfg)
	}

	if !validFormat(cfg.Format) {
		return nil, fmt.Errorf("invalid formatter: %s. Must be one of: %s",
			cfg.Format, strings.Join(formatter.Names(), ", "))
	}

	// Get log directory, default to "logs" if not specified
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	cfg.LogDir, err = filepath.Abs(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", cfg.LogDir, err)
	}

	if cfg.OutputFile != "" {
		cfg.OutputFile, err = filepath.Abs(cfg.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for output file '%s': %w", cfg.OutputFile, err)
		}
	}

	return cfg, nil
}

// SetupLogging rebuilds the run logger from the configured level and
// format. The default before_all hook applies it when the suite does not
// register a before_all hook of its own.
func (c *Config) SetupLogging() {
	c.Log = logging.NewLogger(os.Stderr, c.LogLevel, c.LogFormat)
}

// ResolveBaseDir locates the project root for a feature path by walking
// upward until a directory holds a behave.yaml file or a features
// directory. The starting path may be a feature file, the features
// directory itself or anything beneath it.
func ResolveBaseDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for '%s': %w", path, err)
	}
	dir := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	for {
		if isBaseDir(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no %s directory in '%s'", FeaturesDirName, path)
}

func isBaseDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
		return true
	}
	if info, err := os.Stat(filepath.Join(dir, FeaturesDirName)); err == nil && info.IsDir() {
		return true
	}
	return false
}

func validFormat(name string) bool {
	for _, known := range formatter.Names() {
		if name == known {
			return true
		}
	}
	return false
}

// fileConfig is the subset of the configuration that a behave.yaml file
// at the project root can supply. Pointer fields distinguish absent keys
// from zero values so explicit command line flags keep precedence.
type fileConfig struct {
	Tags                []string `yaml:"tags"`
	Format              *string  `yaml:"format" validate:"omitempty,oneof=plain progress json"`
	Outfile             *string  `yaml:"outfile"`
	DryRun              *bool    `yaml:"dry_run"`
	Stop                *bool    `yaml:"stop"`
	Verbose             *bool    `yaml:"verbose"`
	NoCapture           *bool    `yaml:"no_capture"`
	NoCaptureStderr     *bool    `yaml:"no_capture_stderr"`
	NoLogCapture        *bool    `yaml:"no_logcapture"`
	FailOnCleanupErrors *bool    `yaml:"fail_on_cleanup_errors"`
	LogDir              *string  `yaml:"log_dir"`
	LogLevel            *string  `yaml:"log_level"`
	LogFormat           *string  `yaml:"log_format" validate:"omitempty,oneof=text json"`
}

func loadConfigFile(baseDir string) (*fileConfig, error) {
	path := filepath.Join(baseDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// applyFileDefaults overlays behave.yaml values onto the config. Only
// flags the command line left unset pick up file values.
func applyFileDefaults(ctx *cli.Context, cfg *Config, file *fileConfig) {
	if !ctx.IsSet(flags.Tags.Name) && len(file.Tags) > 0 {
		cfg.Tags = file.Tags
	}
	if !ctx.IsSet(flags.Format.Name) && file.Format != nil {
		cfg.Format = *file.Format
	}
	if !ctx.IsSet(flags.Outfile.Name) && file.Outfile != nil {
		cfg.OutputFile = *file.Outfile
	}
	if !ctx.IsSet(flags.DryRun.Name) && file.DryRun != nil {
		cfg.DryRun = *file.DryRun
	}
	if !ctx.IsSet(flags.Stop.Name) && file.Stop != nil {
		cfg.StopOnFailure = *file.Stop
	}
	if !ctx.IsSet(flags.Verbose.Name) && file.Verbose != nil {
		cfg.Verbose = *file.Verbose
	}
	if !ctx.IsSet(flags.NoCapture.Name) && file.NoCapture != nil {
		cfg.NoCapture = *file.NoCapture
	}
	if !ctx.IsSet(flags.NoCaptureStderr.Name) && file.NoCaptureStderr != nil {
		cfg.NoCaptureStderr = *file.NoCaptureStderr
	}
	if !ctx.IsSet(flags.NoLogCapture.Name) && file.NoLogCapture != nil {
		cfg.NoLogCapture = *file.NoLogCapture
	}
	if !ctx.IsSet(flags.FailOnCleanupErrors.Name) && file.FailOnCleanupErrors != nil {
		cfg.FailOnCleanupErrors = *file.FailOnCleanupErrors
	}
	if !ctx.IsSet(flags.LogDir.Name) && file.LogDir != nil {
		cfg.LogDir = *file.LogDir
	}
	if !ctx.IsSet(flags.LogLevel.Name) && file.LogLevel != nil {
		cfg.LogLevel = *file.LogLevel
	}
	if !ctx.IsSet(flags.LogFormat.Name) && file.LogFormat != nil {
		cfg.LogFormat = *file.LogFormat
	}
}
