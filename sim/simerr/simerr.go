// Package simerr defines the error categories reported by the simulation
// kernel and the components built on top of it.
//
// Errors in these categories indicate programmer mistakes. They are returned
// immediately and must never be swallowed, since a run that hit one can no
// longer be trusted. A kernel that returned one of them must be reset before
// it is used again.
package simerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInitialization reports an operation attempted before the required
	// setup was done.
	ErrInitialization = errors.New("not initialized")

	// ErrCausality reports an attempt to schedule or run into the past.
	ErrCausality = errors.New("causality violation")

	// ErrArgument reports an invalid argument.
	ErrArgument = errors.New("invalid argument")

	// ErrInvalidOperation reports an operation that is not allowed in the
	// current state.
	ErrInvalidOperation = errors.New("invalid operation")
)

// Initialization wraps ErrInitialization with a formatted message.
func Initialization(format string, args ...any) error {
	return wrap(ErrInitialization, format, args...)
}

// Causality wraps ErrCausality with a formatted message.
func Causality(format string, args ...any) error {
	return wrap(ErrCausality, format, args...)
}

// Argument wraps ErrArgument with a formatted message.
func Argument(format string, args ...any) error {
	return wrap(ErrArgument, format, args...)
}

// InvalidOperation wraps ErrInvalidOperation with a formatted message.
func InvalidOperation(format string, args ...any) error {
	return wrap(ErrInvalidOperation, format, args...)
}

func wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
