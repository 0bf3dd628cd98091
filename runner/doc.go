// Package runner executes the vstest.console runner as an external process.
//
// The main components are:
//   - Executor: builds the runner argv, runs the process and captures the outcome
//   - tailBuffer: keeps the end of the runner output for error reporting
//   - SplitArgs: splits the flag string built from the action inputs into argv
package runner
