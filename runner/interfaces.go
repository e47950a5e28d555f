package runner

import (
	"time"

	"github.com/tektronix/behave/types"
)

// Statement is the hook-failure surface of model elements. A failing
// hook marks its statement instead of stopping the run; the first
// failure stores the structured failure, later ones append to the error
// message.
type Statement interface {
	SetHookFailed()
	ErrorMessage() string
	SetErrorMessage(msg string)
	AppendErrorMessage(msg string)
	StoreFailure(failure *types.Failure)
}

// Feature is a runnable feature of the model. Run returns true when the
// feature failed.
type Feature interface {
	Statement

	Name() string
	Filename() string
	Location() types.Location
	Tags() []types.Tag
	Status() types.Status
	Duration() time.Duration
	Run(r *ModelRunner) bool

	// CountInto adds the feature and its children to the run tallies.
	CountInto(stats *types.RunStats)
}

// Reporter receives every feature of the run, whether it ran or not,
// and a final End call after the run loop finished.
type Reporter interface {
	Feature(f Feature)
	End()
}
