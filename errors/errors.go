package errors

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is a wrapper around system errno codes, with a customizable error message.
//
// Errors derived from a sentinel with WithMessage or Wrap still match that
// sentinel under [errors.Is]. Errors produced by Wrap also match the wrapped
// error.
type DriverError interface {
	error
	Errno() Errno
	Unwrap() error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type driverError struct {
	errno         Errno
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e driverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return StrError(e.errno)
}

func (e driverError) Errno() Errno {
	return e.errno
}

func (e driverError) Unwrap() error {
	return e.originalError
}

func (e driverError) WithMessage(message string) DriverError {
	return driverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e,
	}
}

func (e driverError) Wrap(err error) DriverError {
	return driverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// New creates a new [DriverError] with a default message derived from the
// system's error code.
func New(errnoCode Errno) DriverError {
	return driverError{
		errno:   errnoCode,
		message: StrError(errnoCode),
	}
}

// NewWithMessage creates a new DriverError from a system error code with a
// custom message.
func NewWithMessage(errnoCode Errno, message string) DriverError {
	return driverError{
		errno:   errnoCode,
		message: fmt.Sprintf("%s: %s", StrError(errnoCode), message),
	}
}

// newKind creates a sentinel whose message is exactly `message`. Two kinds
// sharing an errno stay distinct under [errors.Is].
func newKind(errnoCode Errno, message string) DriverError {
	return driverError{errno: errnoCode, message: message}
}

// ErrnoOf returns the errno carried by the first [DriverError] in err's chain,
// or EIO if there is none.
func ErrnoOf(err error) Errno {
	if err == nil {
		return EOK
	}
	var driverErr DriverError
	if errors.As(err, &driverErr) {
		return driverErr.Errno()
	}
	return EIO
}

// Is is [errors.Is] from the standard library, so callers importing this
// package don't need both.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
