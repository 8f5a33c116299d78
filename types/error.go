package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Session error codes
const (
	// ErrConfigInvalid marks an invalid configuration. Fatal at session
	// start, never recovered.
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"

	// ErrInsufficientParticipants is returned when a session or metric
	// computation is attempted with fewer than two participants. Fatal.
	ErrInsufficientParticipants ErrorCode = "INSUFFICIENT_PARTICIPANTS"

	// ErrParticipantTimeout marks a participant that failed to supply a
	// position or vote in time. Recovered locally via carry-forward and
	// surfaced as a degraded-round flag.
	ErrParticipantTimeout ErrorCode = "PARTICIPANT_TIMEOUT"

	// ErrDuplicateVote marks a second vote from the same participant in a
	// non-Delphi protocol. The first vote stands; the duplicate is
	// recorded as an anomaly on the decision.
	ErrDuplicateVote ErrorCode = "DUPLICATE_VOTE"

	// ErrSessionAborted marks an external cancellation of the session.
	ErrSessionAborted ErrorCode = "SESSION_ABORTED"
)

// Store error codes
const (
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrStoreClosed ErrorCode = "STORE_CLOSED"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a new Error wrapping a cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// AsError extracts a *Error from err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsErrorCode reports whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code ErrorCode) bool {
	if e := AsError(err); e != nil {
		return e.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, or "" for plain errors.
func GetErrorCode(err error) ErrorCode {
	if e := AsError(err); e != nil {
		return e.Code
	}
	return ""
}
