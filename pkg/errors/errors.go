// Package errors defines the error taxonomy used across the forest engine.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the forest engine (spec §7).
const (
	CodeUnknown          = "UNKNOWN_ERROR"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeDegenerateBox    = "DEGENERATE_BOX"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeEmptyTree        = "EMPTY_TREE"
	CodePointMismatch    = "POINT_MISMATCH"
	CodeSequenceNotFound = "SEQUENCE_NOT_FOUND"
	CodeInvalidRef       = "INVALID_REF"
	CodeInternal         = "INTERNAL_ERROR"
)

// AppError represents an engine error with a stable code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances, per spec §7. The internal packages return these
// sentinels directly; the Is* helpers match them, and any AppError that
// carries the same code, by code.
var (
	ErrInvalidArgument  = New(CodeInvalidArgument, "invalid argument")
	ErrDegenerateBox    = New(CodeDegenerateBox, "random cut attempted on a zero-range box")
	ErrCapacityExceeded = New(CodeCapacityExceeded, "point store is at capacity")
	ErrEmptyTree        = New(CodeEmptyTree, "operation requires a non-empty tree")
	ErrPointMismatch    = New(CodePointMismatch, "deleted point does not match stored leaf")
	ErrSequenceNotFound = New(CodeSequenceNotFound, "sequence index not present in leaf multiset")
	ErrInvalidRef       = New(CodeInvalidRef, "point reference does not exist")
	ErrInternal         = New(CodeInternal, "internal invariant violated")
)

// IsInvalidArgument reports whether err is an invalid-argument error.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsDegenerateBox reports whether err is a degenerate-box error.
func IsDegenerateBox(err error) bool { return errors.Is(err, ErrDegenerateBox) }

// IsCapacityExceeded reports whether err is a capacity-exceeded error.
func IsCapacityExceeded(err error) bool { return errors.Is(err, ErrCapacityExceeded) }

// IsEmptyTree reports whether err is an empty-tree error.
func IsEmptyTree(err error) bool { return errors.Is(err, ErrEmptyTree) }

// IsPointMismatch reports whether err is a point-mismatch error.
func IsPointMismatch(err error) bool { return errors.Is(err, ErrPointMismatch) }

// IsSequenceNotFound reports whether err is a sequence-not-found error.
func IsSequenceNotFound(err error) bool { return errors.Is(err, ErrSequenceNotFound) }

// IsInternal reports whether err is an internal invariant violation.
func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }

// GetErrorCode extracts the error code from an error, or CodeUnknown.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
