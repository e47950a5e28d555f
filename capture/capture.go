// Package capture redirects process stdout, stderr and framework log
// output into bounded buffers while steps and hooks run, so the output of
// failing steps can be attached to their reports.
package capture

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/rs/zerolog"

	"github.com/tektronix/behave/scope"
)

// LogRouter routes framework log output either to its normal destination
// or into a capture buffer while log capture is active. The zerolog
// logger of a run is built on top of one.
type LogRouter struct {
	mu     sync.Mutex
	base   io.Writer
	target io.Writer
}

// NewLogRouter returns a router forwarding to base until redirected.
func NewLogRouter(base io.Writer) *LogRouter {
	return &LogRouter{base: base, target: base}
}

func (r *LogRouter) Write(p []byte) (int, error) {
	r.mu.Lock()
	w := r.target
	r.mu.Unlock()
	return w.Write(p)
}

func (r *LogRouter) redirect(w io.Writer) {
	r.mu.Lock()
	r.target = w
	r.mu.Unlock()
}

func (r *LogRouter) restore() {
	r.mu.Lock()
	r.target = r.base
	r.mu.Unlock()
}

// streamCapture swaps one process-level file (os.Stdout or os.Stderr)
// for a pipe draining into a tail buffer. A single active flag makes
// start and stop idempotent; nested starts collapse into one capture
// span instead of stacking.
type streamCapture struct {
	name    string
	enabled bool
	active  bool
	target  **os.File
	buf     *Buffer
	orig    *os.File
	writer  *os.File
	done    chan struct{}
}

func (s *streamCapture) start() error {
	if !s.enabled || s.active {
		return nil
	}
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	s.orig = *s.target
	*s.target = w
	s.writer = w
	s.done = make(chan struct{})
	go func(buf *Buffer, r *os.File, done chan struct{}) {
		defer close(done)
		_, _ = io.Copy(buf, r)
		_ = r.Close()
	}(s.buf, r, s.done)
	s.active = true
	return nil
}

func (s *streamCapture) stop() {
	if !s.active {
		return
	}
	*s.target = s.orig
	_ = s.writer.Close()
	<-s.done
	s.active = false
}

// Config configures a Controller.
type Config struct {
	Log zerolog.Logger

	CaptureStdout bool
	CaptureStderr bool
	CaptureLog    bool

	// LogWriter is the router the run logger writes through. Required
	// when CaptureLog is set.
	LogWriter *LogRouter

	// MaxBytes bounds each stream buffer; zero selects the default.
	MaxBytes int
}

// Controller owns the capture state of a run. All operations are no-ops
// for streams that are not enabled.
type Controller struct {
	log zerolog.Logger

	stdout *streamCapture
	stderr *streamCapture

	logEnabled bool
	logActive  bool
	logRouter  *LogRouter
	logBuf     *Buffer
}

// NewController builds a controller for the configured streams.
func NewController(cfg Config) *Controller {
	c := &Controller{
		log: cfg.Log,
		stdout: &streamCapture{
			name:    "stdout",
			enabled: cfg.CaptureStdout,
			target:  &os.Stdout,
			buf:     NewBuffer(cfg.MaxBytes),
		},
		stderr: &streamCapture{
			name:    "stderr",
			enabled: cfg.CaptureStderr,
			target:  &os.Stderr,
			buf:     NewBuffer(cfg.MaxBytes),
		},
		logEnabled: cfg.CaptureLog && cfg.LogWriter != nil,
		logRouter:  cfg.LogWriter,
		logBuf:     NewBuffer(cfg.MaxBytes),
	}
	return c
}

// Setup attaches the capture buffers of enabled streams to the context
// as stdout_capture, stderr_capture and log_capture.
func (c *Controller) Setup(ctx *scope.Context) {
	if c.stdout.enabled {
		ctx.Set("stdout_capture", c.stdout.buf)
	}
	if c.stderr.enabled {
		ctx.Set("stderr_capture", c.stderr.buf)
	}
	if c.logEnabled {
		ctx.Set("log_capture", c.logBuf)
	}
}

// Start begins capturing all enabled streams. Starting an already active
// stream is a no-op, so nested capture spans collapse into the outermost
// one.
func (c *Controller) Start() error {
	if err := c.stdout.start(); err != nil {
		return err
	}
	if err := c.stderr.start(); err != nil {
		c.stdout.stop()
		return err
	}
	if c.logEnabled && !c.logActive {
		c.logRouter.redirect(c.logBuf)
		c.logActive = true
	}
	return nil
}

// Stop restores the original stream targets. Stopping while inactive is
// a no-op.
func (c *Controller) Stop() {
	c.stdout.stop()
	c.stderr.stop()
	if c.logActive {
		c.logRouter.restore()
		c.logActive = false
	}
}

// Teardown unconditionally releases all capture plumbing. Safe to call
// even when capture never started.
func (c *Controller) Teardown() {
	c.Stop()
}

// Stdout returns the captured stdout text.
func (c *Controller) Stdout() string {
	return c.stdout.buf.String()
}

// Stderr returns the captured stderr text.
func (c *Controller) Stderr() string {
	return c.stderr.buf.String()
}

// LogOutput returns the captured log text.
func (c *Controller) LogOutput() string {
	return c.logBuf.String()
}

// Reset clears all stream buffers between scenarios.
func (c *Controller) Reset() {
	c.stdout.buf.Reset()
	c.stderr.buf.Reset()
	c.logBuf.Reset()
}

// Report renders the captured output block attached to failing steps.
// Empty streams are omitted; ANSI escapes are stripped so report files
// stay readable.
func (c *Controller) Report() string {
	var parts []string
	if c.stdout.enabled {
		if text := c.Stdout(); text != "" {
			parts = append(parts, "Captured stdout:\n"+stripansi.Strip(strings.TrimRight(text, "\n")))
		}
	}
	if c.stderr.enabled {
		if text := c.Stderr(); text != "" {
			parts = append(parts, "Captured stderr:\n"+stripansi.Strip(strings.TrimRight(text, "\n")))
		}
	}
	if c.logEnabled {
		if text := c.LogOutput(); text != "" {
			parts = append(parts, "Captured logging:\n"+stripansi.Strip(strings.TrimRight(text, "\n")))
		}
	}
	return strings.Join(parts, "\n\n")
}
