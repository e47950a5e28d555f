package runner

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sourcegraph/conc/panics"

	"github.com/tektronix/behave/metrics"
	"github.com/tektronix/behave/scope"
	"github.com/tektronix/behave/types"
)

// Hook points, in the order they fire during a run.
const (
	HookBeforeAll      = "before_all"
	HookAfterAll       = "after_all"
	HookBeforeFeature  = "before_feature"
	HookAfterFeature   = "after_feature"
	HookBeforeScenario = "before_scenario"
	HookAfterScenario  = "after_scenario"
	HookBeforeStep     = "before_step"
	HookAfterStep      = "after_step"
	HookBeforeTag      = "before_tag"
	HookAfterTag       = "after_tag"
)

var knownHooks = map[string]bool{
	HookBeforeAll:      true,
	HookAfterAll:       true,
	HookBeforeFeature:  true,
	HookAfterFeature:   true,
	HookBeforeScenario: true,
	HookAfterScenario:  true,
	HookBeforeStep:     true,
	HookAfterStep:      true,
	HookBeforeTag:      true,
	HookAfterTag:       true,
}

// HookFunc is an environment hook. Entity hooks receive the entity as
// the single argument; tag hooks receive the tag name.
type HookFunc func(c *scope.Context, args ...any) error

// HookRegistry maps hook points to their registered functions. A later
// registration replaces an earlier one.
type HookRegistry struct {
	hooks map[string]HookFunc
}

// NewHookRegistry returns an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string]HookFunc)}
}

// Register binds fn to the named hook point.
func (h *HookRegistry) Register(name string, fn HookFunc) error {
	if !knownHooks[name] {
		return fmt.Errorf("unknown hook %q", name)
	}
	if fn == nil {
		return fmt.Errorf("hook %q has no function", name)
	}
	h.hooks[name] = fn
	return nil
}

// Registered reports whether the hook point has a function bound.
func (h *HookRegistry) Registered(name string) bool {
	_, ok := h.hooks[name]
	return ok
}

func (h *HookRegistry) hook(name string) (HookFunc, bool) {
	fn, ok := h.hooks[name]
	return fn, ok
}

// RunHook invokes the named hook under user mode. Unregistered hooks
// and dry runs are silent no-ops. A hook failure never stops the run
// directly: it is counted, reported as a HOOK-ERROR diagnostic and
// attached to the affected statement. Failures of before_all/after_all
// abort the run instead.
func (r *ModelRunner) RunHook(name string, args ...any) {
	if r.cfg.DryRun {
		return
	}
	fn, ok := r.hooks.hook(name)
	if !ok {
		return
	}

	err := r.scope.UseUserMode(func() error {
		var callErr error
		if recovered := panics.Try(func() { callErr = fn(r.scope, args...) }); recovered != nil {
			return recovered.AsError()
		}
		return callErr
	})
	if err == nil {
		return
	}
	r.handleHookFailure(name, err, args)
}

func (r *ModelRunner) handleHookFailure(name string, err error, args []any) {
	var extra string
	if strings.Contains(name, "tag") && len(args) > 0 {
		extra = fmt.Sprintf("(tag=%v)", args[0])
	}

	errorText := err.Error()
	var recovered *panics.ErrRecovered
	if errors.As(err, &recovered) {
		errorText = fmt.Sprintf("panic: %v", recovered.Value)
		if r.cfg.Verbose {
			errorText += "\n" + strings.TrimRight(string(recovered.Stack), "\n")
		}
	}

	errorMessage := fmt.Sprintf("HOOK-ERROR in %s%s: %s", name, extra, errorText)
	// The diagnostic goes to stdout so active capture picks it up.
	fmt.Fprintln(os.Stdout, errorMessage)
	r.hookFailures++
	metrics.RecordHookFailure(r.runID, name)

	var statement Statement
	switch {
	case strings.Contains(name, "tag"):
		// Tag hooks mark the active scenario, or the feature when no
		// scenario is running yet.
		statement = r.activeStatement("scenario")
		if statement == nil {
			statement = r.activeStatement("feature")
		}
	case strings.Contains(name, "all"):
		// A broken global hook makes the whole run unusable.
		r.SetAborted(true)
	default:
		if len(args) > 0 {
			statement, _ = args[0].(Statement)
		}
	}
	if statement == nil {
		return
	}

	statement.SetHookFailed()
	if statement.ErrorMessage() != "" {
		statement.AppendErrorMessage("\n" + errorMessage)
		return
	}
	failure := &types.Failure{Err: err}
	if recovered != nil {
		failure.Stack = string(recovered.Stack)
	}
	statement.StoreFailure(failure)
	statement.SetErrorMessage(errorMessage)
}

// activeStatement resolves a context attribute to a Statement, ignoring
// absent or nil values.
func (r *ModelRunner) activeStatement(attr string) Statement {
	v, err := r.scope.Get(attr)
	if err != nil || v == nil {
		return nil
	}
	statement, _ := v.(Statement)
	return statement
}
