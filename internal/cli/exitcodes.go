package cli

import "errors"

// Exit codes for the toolfetch CLI
const (
	// ExitSuccess indicates every fetch succeeded
	ExitSuccess = 0

	// ExitFetchFailure indicates a fetch produced an unsuccessful result
	ExitFetchFailure = 1

	// ExitUsageError indicates invalid arguments or an unreadable run file
	ExitUsageError = 2

	// ExitConfigError indicates invalid environment configuration
	ExitConfigError = 3
)

// ErrFetchFailed marks a command whose fetch did not succeed. Its summary
// has already been printed.
var ErrFetchFailed = errors.New("fetch failed")

// exitError attaches an exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, ErrFetchFailed) {
		return ExitFetchFailure
	}
	return ExitUsageError
}
