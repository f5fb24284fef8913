package types

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for categorizing download client errors
const (
	ErrCodeConnectivity   = "CONNECTIVITY_ERROR"
	ErrCodeMalformedState = "MALFORMED_STATE_ERROR"
	ErrCodeRemoval        = "REMOVAL_ERROR"
	ErrCodeTimeout        = "TIMEOUT_ERROR"
)

// ClientError represents a categorized error from a download client operation.
type ClientError struct {
	Code     string // Error category code
	Message  string // Human-readable message
	Username string // Soulseek user the operation targeted, if any
	Path     string // Remote directory or file, if any
	Cause    error  // Underlying error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Username != "" {
		msg += fmt.Sprintf(" (user %s", e.Username)
		if e.Path != "" {
			msg += ", " + e.Path
		}
		msg += ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is().
func (e *ClientError) Is(target error) bool {
	var t *ClientError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Common error instances for comparison
var (
	ErrConnectivity   = &ClientError{Code: ErrCodeConnectivity, Message: "slskd unreachable"}
	ErrMalformedState = &ClientError{Code: ErrCodeMalformedState, Message: "malformed transfer state"}
	ErrRemoval        = &ClientError{Code: ErrCodeRemoval, Message: "removal failed"}
	ErrTimeout        = &ClientError{Code: ErrCodeTimeout, Message: "timed out"}
)

// NewConnectivityError creates an error for a failed call to the daemon.
// It aborts the whole queue sync.
func NewConnectivityError(op string, cause error) *ClientError {
	return &ClientError{
		Code:    ErrCodeConnectivity,
		Message: op + " failed",
		Cause:   cause,
	}
}

// NewMalformedStateError creates an error for a transfer state string that
// could not be parsed.
func NewMalformedStateError(raw string) *ClientError {
	return &ClientError{
		Code:    ErrCodeMalformedState,
		Message: fmt.Sprintf("unrecognized transfer state %q", raw),
	}
}

// NewRemovalError creates an error for a cancellation that could not be issued.
func NewRemovalError(username, path string, cause error) *ClientError {
	return &ClientError{
		Code:     ErrCodeRemoval,
		Message:  "removal failed",
		Username: username,
		Path:     path,
		Cause:    cause,
	}
}

// NewTimeoutError creates an error for a wait that hit its ceiling.
func NewTimeoutError(username, path string, after time.Duration) *ClientError {
	return &ClientError{
		Code:     ErrCodeTimeout,
		Message:  fmt.Sprintf("transfer did not complete within %s", after),
		Username: username,
		Path:     path,
	}
}

// IsConnectivityError checks if an error is a connectivity error.
func IsConnectivityError(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// IsMalformedStateError checks if an error is a malformed state error.
func IsMalformedStateError(err error) bool {
	return errors.Is(err, ErrMalformedState)
}

// IsRemovalError checks if an error is a removal error.
func IsRemovalError(err error) bool {
	return errors.Is(err, ErrRemoval)
}

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}
