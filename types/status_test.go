package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusHasFailed(t *testing.T) {
	tests := []struct {
		status Status
		failed bool
	}{
		{StatusUntested, false},
		{StatusSkipped, false},
		{StatusPassed, false},
		{StatusUndefined, true},
		{StatusFailed, true},
		{StatusError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.failed, tt.status.HasFailed())
		})
	}
}

func TestCombineAll(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		expected Status
	}{
		{
			name:     "empty list is untested",
			statuses: nil,
			expected: StatusUntested,
		},
		{
			name:     "all passed",
			statuses: []Status{StatusPassed, StatusPassed},
			expected: StatusPassed,
		},
		{
			name:     "one failure dominates",
			statuses: []Status{StatusPassed, StatusFailed, StatusPassed},
			expected: StatusFailed,
		},
		{
			name:     "undefined beats passed",
			statuses: []Status{StatusPassed, StatusUndefined},
			expected: StatusUndefined,
		},
		{
			name:     "failed beats undefined",
			statuses: []Status{StatusUndefined, StatusFailed},
			expected: StatusFailed,
		},
		{
			name:     "error beats failed",
			statuses: []Status{StatusFailed, StatusError},
			expected: StatusError,
		},
		{
			name:     "skipped with passed is passed",
			statuses: []Status{StatusSkipped, StatusPassed},
			expected: StatusPassed,
		},
		{
			name:     "all skipped stays skipped",
			statuses: []Status{StatusSkipped, StatusSkipped},
			expected: StatusSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CombineAll(tt.statuses))
		})
	}
}

func TestCountsSummary(t *testing.T) {
	c := make(Counts)
	c.Increment(StatusPassed)
	c.Increment(StatusPassed)
	c.Increment(StatusFailed)
	c.Increment(StatusUndefined)

	assert.Equal(t, 4, c.Total())
	assert.Equal(t, 2, c.Failed())
	assert.Equal(t, "2 passed, 1 failed, 1 undefined", c.Summary())
}

func TestCountsSummaryPassedAlwaysShown(t *testing.T) {
	c := make(Counts)
	assert.Equal(t, "0 passed", c.Summary())
}

func TestFailureReport(t *testing.T) {
	f := NewFailure(errors.New("assertion failed"))
	assert.Equal(t, "assertion failed", f.Error())
	assert.Equal(t, "assertion failed", f.Report())

	f.Stack = "goroutine 1 [running]:"
	f.Captured = "Captured stdout:\nhello"
	report := f.Report()
	assert.Contains(t, report, "assertion failed")
	assert.Contains(t, report, "goroutine 1")
	assert.Contains(t, report, "Captured stdout:")
	assert.ErrorIs(t, f, f.Err)
}

func TestNormalizeTags(t *testing.T) {
	tags := NormalizeTags([]string{"@smoke", "wip", "  @slow ", ""})
	assert.Equal(t, []Tag{"smoke", "wip", "slow"}, tags)
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "features/login.feature:12", Location{File: "features/login.feature", Line: 12}.String())
	assert.Equal(t, "features/login.feature", Location{File: "features/login.feature"}.String())
}
