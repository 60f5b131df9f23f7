package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
)

// Exit codes for the postbox CLI
const (
	// ExitSuccess indicates the command succeeded
	ExitSuccess = 0

	// ExitExecutionFailure indicates the request was sent but no usable
	// response came back (timeout or protocol error)
	ExitExecutionFailure = 1

	// ExitValidationError indicates an invalid definition or body
	ExitValidationError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitAccessError indicates a missing entity or one owned by another user
	ExitAccessError = 5

	// ExitStorageError indicates the database failed
	ExitStorageError = 6

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError pins an exit code to an error. Silent errors were already
// reported by a formatter.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error  { return &exitError{code: ExitUsageError, err: err} }
func configError(err error) error { return &exitError{code: ExitConfigError, err: err} }

func reportedError(err error) error {
	return &exitError{code: ExitCodeFor(err), err: err, silent: true}
}

func isSilent(err error) bool {
	var ee *exitError
	return errors.As(err, &ee) && ee.silent
}

// ExitCodeFor maps an error to the process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch errdef.KindOf(err) {
	case errdef.KindValidation, errdef.KindMalformedBody:
		return ExitValidationError
	case errdef.KindNetwork:
		return ExitNetworkError
	case errdef.KindTimeout, errdef.KindProtocol, errdef.KindCanceled:
		return ExitExecutionFailure
	case errdef.KindAuthorization, errdef.KindNotFound, errdef.KindConflict:
		return ExitAccessError
	case errdef.KindStorage:
		return ExitStorageError
	}
	return ExitExecutionFailure
}
