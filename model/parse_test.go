package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tektronix/behave/stepdef"
)

func TestParseStepsText(t *testing.T) {
	text := `
Given a registered user
And an empty cart
When the user signs in
But the session expires
Then the login page is shown
`
	steps, err := ParseStepsText(text, "features/login.feature.yaml")
	require.NoError(t, err)
	require.Len(t, steps, 5)

	assert.Equal(t, KeywordGiven, steps[0].Keyword())
	assert.Equal(t, "a registered user", steps[0].Text())
	assert.Equal(t, stepdef.TypeGiven, steps[0].StepType())
	// And/But inherit the type of the preceding step.
	assert.Equal(t, stepdef.TypeGiven, steps[1].StepType())
	assert.Equal(t, stepdef.TypeWhen, steps[2].StepType())
	assert.Equal(t, stepdef.TypeWhen, steps[3].StepType())
	assert.Equal(t, stepdef.TypeThen, steps[4].StepType())
	assert.Equal(t, "features/login.feature.yaml", steps[0].Location().File)
}

func TestParseStepsTextSkipsCommentsAndBlanks(t *testing.T) {
	text := "# fixture steps\n\nGiven a registered user\n\n# done\n"
	steps, err := ParseStepsText(text, "f")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "a registered user", steps[0].Text())
}

func TestParseStepsTextDocString(t *testing.T) {
	text := "Given a request body\n\"\"\"\n{\n  \"name\": \"alice\"\n}\n\"\"\"\nThen it is accepted"
	steps, err := ParseStepsText(text, "f")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "{\n  \"name\": \"alice\"\n}", steps[0].DocString())
	assert.Empty(t, steps[1].DocString())
}

func TestParseStepsTextTable(t *testing.T) {
	text := `
Given these users
  | name  | email             |
  | alice | alice@example.com |
  | bob   | bob@example.com   |
When the roster loads
`
	steps, err := ParseStepsText(text, "f")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	table := steps[0].Table()
	require.NotNil(t, table)
	assert.Equal(t, []string{"name", "email"}, table.Headings())
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, map[string]string{"name": "bob", "email": "bob@example.com"}, table.RowMap(1))
	assert.Nil(t, steps[1].Table())
}

func TestParseStepsTextErrors(t *testing.T) {
	_, err := ParseStepsText("frobnicate the widget", "f")
	require.ErrorContains(t, err, "expected a step keyword")

	_, err = ParseStepsText("| name |\n| alice |", "f")
	require.ErrorContains(t, err, "table row before any step")

	_, err = ParseStepsText("\"\"\"\npayload\n\"\"\"", "f")
	require.ErrorContains(t, err, "docstring before any step")

	_, err = ParseStepsText("Given a request body\n\"\"\"\npayload", "f")
	require.ErrorContains(t, err, "docstring not closed")

	_, err = ParseStepsText("Given these users\n| name | email |\n| alice |", "f")
	require.ErrorContains(t, err, "want 2")
}
