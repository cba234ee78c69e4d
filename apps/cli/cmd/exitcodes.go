package cmd

import "errors"

// Exit codes for hitcron CLI
const (
	// ExitSuccess indicates every call returned a status below 400
	ExitSuccess = 0

	// ExitTestFailure indicates one or more calls failed
	ExitTestFailure = 1

	// ExitParseError indicates an invalid workspace file
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitStoreError indicates the store could not be opened or queried
	ExitStoreError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries a process exit code up to Execute
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode returns the code attached to err, or 1
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitTestFailure
}
