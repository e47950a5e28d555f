// Package scope implements the layered attribute store that is shared by
// hooks and step implementations during a test run. Attributes set on an
// inner layer shadow attributes of outer layers and disappear when the
// layer is popped. The store tracks which side wrote each attribute first
// (the framework or user code) and warns when one side masks a value the
// other side set.
package scope

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// Mode identifies the writer of context attributes. The framework runs
// user hooks and steps under ModeUser and its own bookkeeping under
// ModeFramework, so masking warnings can name the offending side.
type Mode string

const (
	ModeFramework Mode = "behave"
	ModeUser      Mode = "user"
)

// RootLayer is the layer name of the bottom frame.
const RootLayer = "testrun"

// WriteSite records where an attribute was last written.
type WriteSite struct {
	File     string
	Line     int
	Function string
}

func (s WriteSite) String() string {
	return fmt.Sprintf("%s (%s:%d)", s.Function, s.File, s.Line)
}

// WarningFunc receives masking warnings. Warnings are advisory and never
// stop a run.
type WarningFunc func(attr, msg string)

// SubstepFunc executes a block of steps text as nested sub-steps of the
// current step.
type SubstepFunc func(text string) error

type frame struct {
	layer    string
	attrs    map[string]any
	cleanups []cleanupEntry
}

func newFrame(layer string) *frame {
	return &frame{layer: layer, attrs: make(map[string]any)}
}

// Config configures a Context.
type Config struct {
	Log                 zerolog.Logger
	Verbose             bool
	FailOnCleanupErrors bool
	OnWarning           WarningFunc
	OnCleanupError      CleanupErrorFunc
}

// Context is the layered store. The zero value is not usable; construct
// with NewContext.
type Context struct {
	log     zerolog.Logger
	verbose bool

	frames   []*frame // frames[0] is the root, the last frame is innermost
	origin   map[string]Mode
	record   map[string]WriteSite
	mode     Mode
	reserved map[string]any // names starting with "_", outside the frame stack

	onWarning WarningFunc

	cleanupErrors       int
	failOnCleanupErrors bool
	onCleanupError      CleanupErrorFunc

	substeps SubstepFunc
}

// NewContext returns a store holding only the root frame, seeded with the
// standard run attributes (aborted, failed, feature, table, text and the
// capture slots).
func NewContext(cfg Config) *Context {
	c := &Context{
		log:                 cfg.Log,
		verbose:             cfg.Verbose,
		frames:              []*frame{newFrame(RootLayer)},
		origin:              make(map[string]Mode),
		record:              make(map[string]WriteSite),
		mode:                ModeFramework,
		reserved:            make(map[string]any),
		onWarning:           cfg.OnWarning,
		failOnCleanupErrors: cfg.FailOnCleanupErrors,
		onCleanupError:      cfg.OnCleanupError,
	}
	if c.onWarning == nil {
		c.onWarning = c.logWarning
	}
	if c.onCleanupError == nil {
		c.onCleanupError = logCleanupError
	}
	for _, seed := range []string{"aborted", "failed"} {
		c.Set(seed, false)
	}
	for _, seed := range []string{"feature", "table", "text", "stdout_capture", "stderr_capture", "log_capture"} {
		c.Set(seed, nil)
	}
	return c
}

func (c *Context) logWarning(attr, msg string) {
	c.log.Warn().Str("attribute", attr).Msg(msg)
}

func (c *Context) top() *frame {
	return c.frames[len(c.frames)-1]
}

// Push adds a new layer on top of the stack. Layer names in use are
// "feature" and "scenario"; the root frame is the "testrun" layer.
func (c *Context) Push(layer string) {
	c.frames = append(c.frames, newFrame(layer))
}

// Pop drains the cleanups of the innermost layer and removes it. The
// layer is removed even when a cleanup fails; the first cleanup failure
// is returned when the fail-on-cleanup-errors policy is active.
func (c *Context) Pop() error {
	if len(c.frames) == 1 {
		panic("scope: Pop on root frame")
	}
	err := c.drainCleanups()
	c.frames = c.frames[:len(c.frames)-1]
	return err
}

// Depth returns the number of layers including the root.
func (c *Context) Depth() int {
	return len(c.frames)
}

// Layer returns the name of the innermost layer.
func (c *Context) Layer() string {
	return c.top().layer
}

// Mode returns the currently active writer mode.
func (c *Context) Mode() Mode {
	return c.mode
}

// UseUserMode runs fn with user code as the attribute writer. The
// previous mode is restored when fn returns, also on error or panic.
func (c *Context) UseUserMode(fn func() error) error {
	return c.useMode(ModeUser, fn)
}

// UseFrameworkMode runs fn with the framework as the attribute writer.
func (c *Context) UseFrameworkMode(fn func() error) error {
	return c.useMode(ModeFramework, fn)
}

func (c *Context) useMode(mode Mode, fn func() error) error {
	prev := c.mode
	c.mode = mode
	defer func() { c.mode = prev }()
	return fn()
}

// Get returns the attribute value, searching layers from innermost to
// root. Names starting with "_" resolve against the reserved table.
func (c *Context) Get(name string) (any, error) {
	if strings.HasPrefix(name, "_") {
		if v, ok := c.reserved[name]; ok {
			return v, nil
		}
		return nil, &AttributeNotFoundError{Name: name}
	}
	for i := len(c.frames) - 1; i >= 0; i-- {
		if v, ok := c.frames[i].attrs[name]; ok {
			return v, nil
		}
	}
	return nil, &AttributeNotFoundError{Name: name}
}

// Bool returns the attribute as a bool, or false when the attribute is
// absent or of another type.
func (c *Context) Bool(name string) bool {
	v, err := c.Get(name)
	if err != nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Contains reports whether the attribute is visible on any layer.
func (c *Context) Contains(name string) bool {
	if strings.HasPrefix(name, "_") {
		_, ok := c.reserved[name]
		return ok
	}
	for i := len(c.frames) - 1; i >= 0; i-- {
		if _, ok := c.frames[i].attrs[name]; ok {
			return true
		}
	}
	return false
}

// Set writes the attribute into the innermost layer. Writing a name that
// is visible on an outer layer emits a masking warning; the outer value
// reappears when the layer is popped. Names starting with "_" bypass the
// layer stack.
func (c *Context) Set(name string, value any) {
	if strings.HasPrefix(name, "_") {
		c.reserved[name] = value
		return
	}
	for i := len(c.frames) - 2; i >= 0; i-- {
		if _, ok := c.frames[i].attrs[name]; ok {
			c.emitWarning(name)
			break
		}
	}
	c.record[name] = callerSite(2)
	c.top().attrs[name] = value
	if _, ok := c.origin[name]; !ok {
		c.origin[name] = c.mode
	}
}

// SetRootAttribute writes the attribute directly into the root frame,
// warning for every inner layer that shadows it.
func (c *Context) SetRootAttribute(name string, value any) {
	for i := len(c.frames) - 1; i >= 1; i-- {
		if _, ok := c.frames[i].attrs[name]; ok {
			c.emitWarning(name)
		}
	}
	c.frames[0].attrs[name] = value
	if _, ok := c.origin[name]; !ok {
		c.origin[name] = c.mode
	}
}

// Delete removes the attribute from the innermost layer. An attribute
// held by an outer layer cannot be deleted through an inner one.
func (c *Context) Delete(name string) error {
	if strings.HasPrefix(name, "_") {
		if _, ok := c.reserved[name]; ok {
			delete(c.reserved, name)
			return nil
		}
		return &AttributeNotFoundError{Name: name, CurrentLevel: true}
	}
	top := c.top()
	if _, ok := top.attrs[name]; !ok {
		return &AttributeNotFoundError{Name: name, CurrentLevel: true}
	}
	delete(top.attrs, name)
	delete(c.record, name)
	return nil
}

// Origin returns the mode of the first writer of the attribute.
func (c *Context) Origin(name string) (Mode, bool) {
	m, ok := c.origin[name]
	return m, ok
}

// LastWrite returns the site of the last Set of the attribute.
func (c *Context) LastWrite(name string) (WriteSite, bool) {
	s, ok := c.record[name]
	return s, ok
}

func (c *Context) emitWarning(name string) {
	site := c.record[name]
	var msg string
	switch {
	case c.mode == ModeFramework && c.origin[name] != ModeFramework:
		msg = fmt.Sprintf("behave runner is masking context attribute '%s' originally set in %s", name, site)
	case c.mode == ModeUser && c.origin[name] != ModeUser:
		msg = fmt.Sprintf("user code is masking context attribute '%s' originally set by behave", name)
	case c.mode == ModeUser && c.verbose:
		msg = fmt.Sprintf("user code is masking context attribute '%s'; see the tutorial for what this means", name)
	}
	if msg != "" {
		c.onWarning(name, msg)
	}
}

// BindSubstepRunner attaches the executor used by ExecuteSteps. The model
// binds it for the duration of a feature run and unbinds it afterwards.
func (c *Context) BindSubstepRunner(fn SubstepFunc) {
	c.substeps = fn
}

// UnbindSubstepRunner detaches the substep executor.
func (c *Context) UnbindSubstepRunner() {
	c.substeps = nil
}

// ExecuteSteps runs the given steps text as sub-steps of the current
// step, quietly and without capture. The step's table and text attributes
// are restored afterwards. Calling it while no feature is running returns
// an error.
func (c *Context) ExecuteSteps(text string) error {
	if c.substeps == nil {
		return fmt.Errorf("execute_steps() called outside of feature")
	}
	table, _ := c.Get("table")
	stepText, _ := c.Get("text")
	return c.UseFrameworkMode(func() error {
		defer func() {
			c.Set("table", table)
			c.Set("text", stepText)
		}()
		return c.substeps(text)
	})
}

func callerSite(skip int) WriteSite {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return WriteSite{File: "unknown", Function: "unknown"}
	}
	site := WriteSite{File: file, Line: line, Function: "unknown"}
	if fn := runtime.FuncForPC(pc); fn != nil {
		site.Function = fn.Name()
	}
	return site
}
