// Package indexer exposes Soulseek network searches as release listings.
package indexer

import (
	"errors"
	"fmt"
)

// Error codes for categorizing search errors
const (
	ErrCodeInvalidQuery = "INVALID_QUERY_ERROR"
	ErrCodeSearch       = "SEARCH_ERROR"
	ErrCodeNetwork      = "NETWORK_ERROR"
	ErrCodeTimeout      = "TIMEOUT_ERROR"
	ErrCodeNotFound     = "NOT_FOUND_ERROR"
)

// IndexerError represents a categorized error from a search operation.
type IndexerError struct {
	Code      string // Error category code
	Message   string // Human-readable message
	SearchID  string // ID of the affected search (empty if not applicable)
	Retryable bool   // Whether the operation can be retried
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *IndexerError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.SearchID != "" {
		msg += " (search " + e.SearchID + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *IndexerError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is().
func (e *IndexerError) Is(target error) bool {
	var t *IndexerError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Common error instances for comparison
var (
	ErrInvalidQuery = &IndexerError{Code: ErrCodeInvalidQuery, Message: "invalid query"}
	ErrSearch       = &IndexerError{Code: ErrCodeSearch, Message: "search failed"}
	ErrNetwork      = &IndexerError{Code: ErrCodeNetwork, Message: "network error"}
	ErrTimeout      = &IndexerError{Code: ErrCodeTimeout, Message: "search timed out"}
	ErrNotFound     = &IndexerError{Code: ErrCodeNotFound, Message: "not found"}
)

// NewInvalidQueryError creates an error for a query that cannot be searched.
func NewInvalidQueryError(message string) *IndexerError {
	return &IndexerError{
		Code:    ErrCodeInvalidQuery,
		Message: message,
	}
}

// NewSearchError creates a search error.
func NewSearchError(searchID string, cause error) *IndexerError {
	return &IndexerError{
		Code:      ErrCodeSearch,
		Message:   "search failed",
		SearchID:  searchID,
		Retryable: true,
		Cause:     cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(searchID string, cause error) *IndexerError {
	return &IndexerError{
		Code:      ErrCodeNetwork,
		Message:   "network error",
		SearchID:  searchID,
		Retryable: true,
		Cause:     cause,
	}
}

// NewTimeoutError creates an error for a search that never completed.
func NewTimeoutError(searchID string, cause error) *IndexerError {
	return &IndexerError{
		Code:      ErrCodeTimeout,
		Message:   "search did not complete in time",
		SearchID:  searchID,
		Retryable: true,
		Cause:     cause,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *IndexerError {
	return &IndexerError{
		Code:    ErrCodeNotFound,
		Message: message,
	}
}

// IsRetryable returns whether the error is retryable.
func IsRetryable(err error) bool {
	var indexerErr *IndexerError
	if errors.As(err, &indexerErr) {
		return indexerErr.Retryable
	}
	return false
}

// IsNetworkError returns whether the error is a network error.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsTimeoutError returns whether the error is a search timeout.
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var indexerErr *IndexerError
	if errors.As(err, &indexerErr) {
		return indexerErr.Code
	}
	return ""
}
