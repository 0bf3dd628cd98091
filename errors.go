package vstest

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include configuration errors, an unreadable inputs file, etc.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// RunFailedError is returned when a step marked the run failed (exit code 1)
type RunFailedError struct {
	Messages []string
}

func (e *RunFailedError) Error() string {
	if len(e.Messages) == 0 {
		return "run failed"
	}
	return fmt.Sprintf("run failed: %s", strings.Join(e.Messages, "; "))
}

// NewRunFailedError creates a new RunFailedError
func NewRunFailedError(messages ...string) *RunFailedError {
	return &RunFailedError{Messages: messages}
}

// IsRunFailedError checks if the error is or wraps a RunFailedError
func IsRunFailedError(err error) bool {
	var failedErr *RunFailedError
	return err != nil && errors.As(err, &failedErr)
}
