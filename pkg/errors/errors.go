// Package errors defines the sentinel error kinds surfaced by the knowledge
// engine and an AppError wrapper that carries caller-correctable detail.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrQueryParse marks a malformed boolean query. The detail names the
	// offending fragment; the query is never auto-corrected.
	ErrQueryParse = errors.New("query parse error")
	// ErrInvalidFilter marks an out-of-range result limit or conflicting
	// tag filters.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrMergeValidation marks a merge request that cannot be executed:
	// too few sources, missing source slots, or a bad threshold.
	ErrMergeValidation = errors.New("merge validation failed")
	// ErrIndexConsistency marks an internal index invariant violation. It
	// signals that a rebuild from the live slot data is required.
	ErrIndexConsistency = errors.New("index consistency violation")
	// ErrSlotNotFound marks a reference to a slot the store does not hold.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrInternal marks an unexpected failure with no caller remedy.
	ErrInternal = errors.New("internal error")
)

// AppError pairs a sentinel error kind with a human-readable detail message.
type AppError struct {
	Err    error
	Detail string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel with a detail message.
func New(sentinel error, detail string) *AppError {
	return &AppError{Err: sentinel, Detail: detail}
}

// Newf wraps a sentinel with a formatted detail message.
func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{Err: sentinel, Detail: fmt.Sprintf(format, args...)}
}

// QueryParse builds a parse error identifying the offending query fragment.
func QueryParse(fragment string, reason string) *AppError {
	return Newf(ErrQueryParse, "%s at %q", reason, fragment)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
