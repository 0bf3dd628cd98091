// Package exitcodes defines the standard exit codes used by op-vstest.
package exitcodes

// Exit code constants used by op-vstest
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when the runner passed and nothing marked the run failed
// * TestFailure (1): Used when the run was marked failed (test failures, no assemblies, no artifacts with policy "error")
// * RuntimeErr (2): Used for setup errors such as invalid flags or an unreadable inputs file
const (
	Success     = 0 // Run succeeded
	TestFailure = 1 // Run marked failed
	RuntimeErr  = 2 // Setup or runtime errors
)
