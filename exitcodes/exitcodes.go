// Package exitcodes defines the standard exit codes used by behave.
package exitcodes

// Exit code constants used by behave
// These constants define the exit codes that the command uses to indicate
// various states when it exits:
//
// * Success (0): Used when every scenario passes
// * TestFailure (1): Used when scenarios fail, hooks fail or steps are undefined
// * RuntimeErr (2): Used for runtime errors such as configuration or discovery failures
const (
	Success     = 0 // All scenarios pass
	TestFailure = 1 // Scenario, hook or cleanup failures
	RuntimeErr  = 2 // Runtime errors such as bad configuration
)
