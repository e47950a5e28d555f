package scope

import (
	"fmt"
	"path"
	"reflect"
	"runtime"

	"github.com/sourcegraph/conc/panics"
)

// CleanupFunc is a deferred action registered on the current layer.
type CleanupFunc func() error

// CleanupErrorFunc is called for every failing cleanup, before the
// failure is folded into the drain result.
type CleanupErrorFunc func(c *Context, name string, err error)

// CleanupError wraps the first failure of a cleanup drain.
type CleanupError struct {
	Name string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s failed: %v", e.Name, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

type cleanupEntry struct {
	name string
	fn   CleanupFunc
	ptr  uintptr
}

// AddCleanup registers fn to run when the current layer is popped.
// Registering the same function twice on one layer is a no-op; function
// identity is its code pointer, so distinct closures over one literal
// count as the same function.
func (c *Context) AddCleanup(fn CleanupFunc) {
	c.AddNamedCleanup(funcName(fn), fn)
}

// AddNamedCleanup registers fn under an explicit name used in
// cleanup-error diagnostics.
func (c *Context) AddNamedCleanup(name string, fn CleanupFunc) {
	if fn == nil {
		panic("scope: nil cleanup function")
	}
	top := c.top()
	ptr := reflect.ValueOf(fn).Pointer()
	for _, entry := range top.cleanups {
		if entry.ptr == ptr {
			return
		}
	}
	top.cleanups = append(top.cleanups, cleanupEntry{name: name, fn: fn, ptr: ptr})
}

// DrainCleanups runs the cleanups of the innermost layer without
// removing the layer. The run loop uses this to flush root cleanups at
// the end of a run.
func (c *Context) DrainCleanups() error {
	return c.drainCleanups()
}

// drainCleanups runs all registered cleanups of the innermost layer in
// reverse registration order. Every cleanup runs regardless of earlier
// failures; each failure bumps the error counter and is handed to the
// cleanup-error handler. Under the fail-on-cleanup-errors policy the
// FIRST failure becomes the drain result.
func (c *Context) drainCleanups() error {
	top := c.top()
	cleanups := top.cleanups
	top.cleanups = nil

	var first error
	for i := len(cleanups) - 1; i >= 0; i-- {
		entry := cleanups[i]
		err := runCleanup(entry.fn)
		if err == nil {
			continue
		}
		c.cleanupErrors++
		c.onCleanupError(c, entry.name, err)
		if first == nil {
			first = &CleanupError{Name: entry.name, Err: err}
		}
	}
	if c.failOnCleanupErrors {
		return first
	}
	return nil
}

// CleanupErrors returns the number of cleanup failures seen so far.
func (c *Context) CleanupErrors() int {
	return c.cleanupErrors
}

// SetFailOnCleanupErrors switches the policy of returning the first
// cleanup failure from Pop and DrainCleanups. Failures are reported and
// counted either way.
func (c *Context) SetFailOnCleanupErrors(fail bool) {
	c.failOnCleanupErrors = fail
}

// SetCleanupErrorHandler replaces the per-failure handler.
func (c *Context) SetCleanupErrorHandler(fn CleanupErrorFunc) {
	if fn == nil {
		fn = logCleanupError
	}
	c.onCleanupError = fn
}

func logCleanupError(c *Context, name string, err error) {
	c.log.Error().Err(err).Msgf("CLEANUP-ERROR in %s: %v", name, err)
}

func runCleanup(fn CleanupFunc) (err error) {
	if recovered := panics.Try(func() { err = fn() }); recovered != nil {
		return recovered.AsError()
	}
	return err
}

func funcName(fn CleanupFunc) string {
	rf := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if rf == nil {
		return "cleanup"
	}
	return path.Base(rf.Name())
}
