// Package tags evaluates tag selection expressions such as
// "smoke and not wip" against the tags of features and scenarios.
package tags

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tektronix/behave/types"
)

var identPattern = regexp.MustCompile(`[A-Za-z_]\w*`)

var keywords = map[string]bool{
	"and":   true,
	"or":    true,
	"not":   true,
	"true":  true,
	"false": true,
}

// Expression is a compiled tag selection expression. The nil Expression
// and the empty expression select everything.
type Expression struct {
	source  string
	program *vm.Program
	idents  []string
}

// Parse compiles a tag expression. Tag references may carry the optional
// "@" marker; it is stripped before compilation.
func Parse(source string) (*Expression, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(source, "@", ""))
	if trimmed == "" {
		return &Expression{}, nil
	}

	var idents []string
	seen := make(map[string]bool)
	for _, ident := range identPattern.FindAllString(trimmed, -1) {
		if keywords[ident] || seen[ident] {
			continue
		}
		seen[ident] = true
		idents = append(idents, ident)
	}

	program, err := expr.Compile(trimmed,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("tag expression %q: %w", source, err)
	}
	return &Expression{source: trimmed, program: program, idents: idents}, nil
}

// Match evaluates the expression against a tag set. Every tag referenced
// by the expression resolves to whether it is present in the set.
func (e *Expression) Match(tags []types.Tag) (bool, error) {
	if e == nil || e.program == nil {
		return true, nil
	}
	present := make(map[string]bool, len(tags))
	for _, t := range tags {
		present[string(t)] = true
	}
	env := make(map[string]any, len(e.idents))
	for _, ident := range e.idents {
		env[ident] = present[ident]
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return false, fmt.Errorf("tag expression %q: %w", e.source, err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("tag expression %q: result is %T, not bool", e.source, out)
	}
	return matched, nil
}

// String returns the compiled source of the expression.
func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	return e.source
}
