package cmd

import (
	"errors"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// exitError carries a process exit status. A silent exitError has already
// been reported on stdout (inline provider errors) and prints nothing more.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status"
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// withCode returns an error that exits with code without printing.
func withCode(code int) error {
	if code == 0 {
		return nil
	}
	return &exitError{code: code, silent: true}
}

// usageError marks an invalid invocation.
func usageError(err error) error {
	return &exitError{code: 1, err: err}
}

// exitCode maps a command error to the process exit status:
// 3 for config and credential problems, 4 for timeouts, 2 for unsupported
// providers or operations, 1 for anything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, config.ErrInvalid) {
		return 3
	}
	if errors.Is(err, provider.ErrUnknown) {
		return 2
	}
	var fe *model.FetchError
	if errors.As(err, &fe) {
		return fe.Kind.ExitCode()
	}
	return 1
}

func isSilent(err error) bool {
	var ee *exitError
	return errors.As(err, &ee) && ee.silent
}
