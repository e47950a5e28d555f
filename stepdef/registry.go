// Package stepdef holds the registry of step implementations and matches
// step text against their patterns.
package stepdef

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/tektronix/behave/scope"
)

// Step types. And/But steps are resolved to the type of the preceding
// step before lookup; TypeStep definitions match any type.
const (
	TypeGiven = "given"
	TypeWhen  = "when"
	TypeThen  = "then"
	TypeStep  = "step"
)

// StepFunc is a step implementation. It receives the run context and the
// capture groups of the pattern match, in order.
type StepFunc func(c *scope.Context, args ...string) error

// AmbiguousStepError reports a pattern registered twice for one step type.
type AmbiguousStepError struct {
	StepType string
	Pattern  string
	Existing string
}

func (e *AmbiguousStepError) Error() string {
	return fmt.Sprintf("ambiguous step: %s %q is already defined at %s", e.StepType, e.Pattern, e.Existing)
}

type definition struct {
	stepType string
	pattern  *regexp.Regexp
	source   string
	fn       StepFunc
	location string
}

// Match is a resolved step: a definition plus the capture groups
// extracted from the step text.
type Match struct {
	def  *definition
	args []string
}

// Run invokes the step implementation with the matched arguments.
func (m *Match) Run(c *scope.Context) error {
	return m.def.fn(c, m.args...)
}

// Location returns the registration site of the matched definition.
func (m *Match) Location() string {
	return m.def.location
}

// Arguments returns the capture groups of the match.
func (m *Match) Arguments() []string {
	return m.args
}

// Registry stores step definitions grouped by step type.
type Registry struct {
	defs map[string][]*definition
}

// NewRegistry returns an empty step registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string][]*definition)}
}

// Register adds a step definition. The pattern is anchored at both ends
// when no anchors are given, so patterns match whole step texts.
func (r *Registry) Register(stepType, pattern string, fn StepFunc) error {
	return r.register(stepType, pattern, fn, 3)
}

func (r *Registry) register(stepType string, pattern string, fn StepFunc, skip int) error {
	stepType = strings.ToLower(stepType)
	switch stepType {
	case TypeGiven, TypeWhen, TypeThen, TypeStep:
	default:
		return fmt.Errorf("unknown step type %q", stepType)
	}
	if fn == nil {
		return fmt.Errorf("step %q has no implementation", pattern)
	}
	for _, existing := range r.defs[stepType] {
		if existing.source == pattern {
			return &AmbiguousStepError{StepType: stepType, Pattern: pattern, Existing: existing.location}
		}
	}
	re, err := regexp.Compile(anchored(pattern))
	if err != nil {
		return fmt.Errorf("step pattern %q: %w", pattern, err)
	}
	r.defs[stepType] = append(r.defs[stepType], &definition{
		stepType: stepType,
		pattern:  re,
		source:   pattern,
		fn:       fn,
		location: callerLocation(skip),
	})
	return nil
}

// Given registers a given step and panics on an invalid or duplicate
// pattern. Step registration happens at program setup where a bad
// pattern is a programming error.
func (r *Registry) Given(pattern string, fn StepFunc) {
	r.mustRegister(TypeGiven, pattern, fn)
}

// When registers a when step.
func (r *Registry) When(pattern string, fn StepFunc) {
	r.mustRegister(TypeWhen, pattern, fn)
}

// Then registers a then step.
func (r *Registry) Then(pattern string, fn StepFunc) {
	r.mustRegister(TypeThen, pattern, fn)
}

// Step registers a generic step matching any step type.
func (r *Registry) Step(pattern string, fn StepFunc) {
	r.mustRegister(TypeStep, pattern, fn)
}

func (r *Registry) mustRegister(stepType, pattern string, fn StepFunc) {
	if err := r.register(stepType, pattern, fn, 4); err != nil {
		panic(err)
	}
}

// Find resolves step text against the definitions of the given type,
// then against the generic definitions. The first matching definition
// wins.
func (r *Registry) Find(stepType, text string) (*Match, bool) {
	stepType = strings.ToLower(stepType)
	for _, group := range [][]*definition{r.defs[stepType], r.defs[TypeStep]} {
		for _, def := range group {
			groups := def.pattern.FindStringSubmatch(text)
			if groups == nil {
				continue
			}
			return &Match{def: def, args: groups[1:]}, true
		}
	}
	return nil, false
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	n := 0
	for _, group := range r.defs {
		n += len(group)
	}
	return n
}

func anchored(pattern string) string {
	if !strings.HasPrefix(pattern, "^") {
		pattern = "^" + pattern
	}
	if !strings.HasSuffix(pattern, "$") {
		pattern += "$"
	}
	return pattern
}

func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
