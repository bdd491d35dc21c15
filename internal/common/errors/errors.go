// Package errors provides the typed error taxonomy for assignment flows.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyResponded    ErrorCode = "ALREADY_RESPONDED"
	ErrCodeExpired             ErrorCode = "EXPIRED"
	ErrCodeQuotaExceeded       ErrorCode = "QUOTA_EXCEEDED"
	ErrCodePersistenceConflict ErrorCode = "PERSISTENCE_CONFLICT"
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQueryFailed      ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodePoolQueryFailed          ErrorCode = "POOL_QUERY_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"

	// Not a failure: the pool could not fill the requested quotas and the
	// batch was created under-filled. Surfaced only in logs and metrics.
	ErrCodeInsufficientCandidates ErrorCode = "INSUFFICIENT_CANDIDATES"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	var std *StandardError
	if errors.As(target, &std) {
		return e.Code == std.Code
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or empty when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var std *StandardError
	if errors.As(err, &std) {
		return std.Code
	}
	return ""
}

// IsNotFound reports whether err carries NOT_FOUND.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsAlreadyResponded reports whether err carries ALREADY_RESPONDED.
func IsAlreadyResponded(err error) bool { return CodeOf(err) == ErrCodeAlreadyResponded }

// IsExpired reports whether err carries EXPIRED.
func IsExpired(err error) bool { return CodeOf(err) == ErrCodeExpired }

// NewNotFoundError marks a missing entity or an ownership mismatch;
// both are reported identically to the caller.
func NewNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyRespondedError marks a candidate that is no longer pending
// or has been invalidated by a sibling's acceptance.
func NewAlreadyRespondedError(candidateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyResponded,
		Message:   "Candidate has already responded or was invalidated",
		Details:   fmt.Sprintf("candidateId: %s", candidateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExpiredError marks a candidate whose acceptance deadline passed.
func NewExpiredError(candidateID string, deadline time.Time) *StandardError {
	return &StandardError{
		Code:      ErrCodeExpired,
		Message:   "Acceptance deadline has passed",
		Details:   fmt.Sprintf("candidateId: %s, deadline: %s", candidateID, deadline.UTC().Format(time.RFC3339)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuotaExceededError surfaces the billing gate's refusal.
func NewQuotaExceededError(clientID, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaExceeded,
		Message:   "Client quota exceeded",
		Details:   fmt.Sprintf("clientId: %s, reason: %s", clientID, reason),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceConflictError marks a conditional update that found the
// row already mutated by a concurrent writer.
func NewPersistenceConflictError(candidateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceConflict,
		Message:   "Row was concurrently mutated",
		Details:   fmt.Sprintf("candidateId: %s", candidateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError marks a malformed request payload.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryFailedError creates a retryable query execution error.
func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPoolQueryFailedError creates a retryable worker-pool lookup error.
func NewPoolQueryFailedError(tier string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePoolQueryFailed,
		Message:   "Worker pool lookup failed",
		Details:   fmt.Sprintf("tier: %s, error: %s", tier, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send
// error. Never propagated past the dispatcher.
func NewNotificationSendFailedError(event string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("event: %s, error: %s", event, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
