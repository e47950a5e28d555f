package model

import (
	"fmt"
	"strings"

	"github.com/tektronix/behave/types"
)

var stepKeywords = map[string]string{
	"given": KeywordGiven,
	"when":  KeywordWhen,
	"then":  KeywordThen,
	"and":   KeywordAnd,
	"but":   KeywordBut,
	"*":     KeywordStep,
}

// ParseStepsText parses a block of steps-text into steps. Each step
// line starts with a keyword (Given/When/Then/And/But or *); a step may
// be followed by a docstring delimited by `"""` lines or by table rows
// starting with `|`. file is recorded as the steps' location.
func ParseStepsText(text, file string) ([]*Step, error) {
	var steps []*Step
	var previousType string

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if line == `"""` {
			if len(steps) == 0 {
				return nil, fmt.Errorf("steps text line %d: docstring before any step", i+1)
			}
			indent := leadingSpace(lines[i])
			var content []string
			closed := false
			for i++; i < len(lines); i++ {
				if strings.TrimSpace(lines[i]) == `"""` {
					closed = true
					break
				}
				content = append(content, strings.TrimPrefix(lines[i], indent))
			}
			if !closed {
				return nil, fmt.Errorf("steps text: docstring not closed")
			}
			steps[len(steps)-1].SetDocString(strings.Join(content, "\n"))
			continue
		}

		if strings.HasPrefix(line, "|") {
			if len(steps) == 0 {
				return nil, fmt.Errorf("steps text line %d: table row before any step", i+1)
			}
			rows := [][]string{splitTableRow(line)}
			for i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if !strings.HasPrefix(next, "|") {
					break
				}
				i++
				rows = append(rows, splitTableRow(next))
			}
			table, err := NewTable(rows[0], rows[1:])
			if err != nil {
				return nil, fmt.Errorf("steps text line %d: %w", i+1, err)
			}
			steps[len(steps)-1].SetTable(table)
			continue
		}

		keyword, rest, ok := splitKeyword(line)
		if !ok {
			return nil, fmt.Errorf("steps text line %d: expected a step keyword, got %q", i+1, line)
		}
		stepType := ResolveStepType(keyword, previousType)
		previousType = stepType
		steps = append(steps, NewStep(stepType, keyword, rest, types.Location{File: file, Line: i + 1}))
	}
	return steps, nil
}

// ParseStepLine splits a step line into its canonical keyword and the
// step text. It fails when the line does not start with a step keyword.
func ParseStepLine(line string) (keyword, text string, err error) {
	keyword, text, ok := splitKeyword(strings.TrimSpace(line))
	if !ok {
		return "", "", fmt.Errorf("expected a step keyword, got %q", line)
	}
	return keyword, text, nil
}

func splitKeyword(line string) (keyword, text string, ok bool) {
	word, rest, _ := strings.Cut(line, " ")
	canonical, ok := stepKeywords[strings.ToLower(word)]
	if !ok {
		return "", "", false
	}
	return canonical, strings.TrimSpace(rest), true
}

func splitTableRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, part := range parts {
		cells = append(cells, strings.TrimSpace(part))
	}
	return cells
}

func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
