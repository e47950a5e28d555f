package reporter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tektronix/behave/runner"
	"github.com/tektronix/behave/stepdef"
)

var registerFuncs = map[string]string{
	stepdef.TypeGiven: "Given",
	stepdef.TypeWhen:  "When",
	stepdef.TypeThen:  "Then",
	stepdef.TypeStep:  "Step",
}

// UndefinedSnippets renders registration skeletons for the given
// undefined steps, deduplicated, so they can be pasted into a step
// definition package.
func UndefinedSnippets(steps []runner.UndefinedStep) string {
	if len(steps) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\nYou can implement step definitions for undefined steps with these snippets:\n")

	seen := make(map[string]bool)
	for _, step := range steps {
		register, ok := registerFuncs[step.StepType]
		if !ok {
			register = "Step"
		}
		key := register + " " + step.Text
		if seen[key] {
			continue
		}
		seen[key] = true

		fmt.Fprintf(&b, "\nsteps.%s(`%s`, func(c *scope.Context, args ...string) error {\n", register, regexp.QuoteMeta(step.Text))
		fmt.Fprintf(&b, "\treturn errors.New(%q)\n", fmt.Sprintf("STEP: %s %s", step.Keyword, step.Text))
		b.WriteString("})\n")
	}
	return b.String()
}
