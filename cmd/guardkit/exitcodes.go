package main

import "fmt"

// Exit codes for the guardkit CLI.
const (
	ExitOK              = 0 // Run completed, possibly with per-step warnings.
	ExitInvalidArgs     = 1 // Invalid arguments or unknown module id.
	ExitNothingProduced = 3 // No output produced (module repository unreadable or empty).
)

// exitCodeError carries a non-zero exit code through cobra's error handling.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

// ExitCode returns the exit code for this error.
func (e *exitCodeError) ExitCode() int { return e.code }

func exitError(code int, format string, args ...any) *exitCodeError {
	return &exitCodeError{code: code, msg: fmt.Sprintf(format, args...)}
}
