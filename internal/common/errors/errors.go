// Package errors provides standardized error handling for the ticket queue core.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTicketNotFound  ErrorCode = "TICKET_NOT_FOUND"
	ErrCodeServiceNotFound ErrorCode = "SERVICE_NOT_FOUND"

	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeDispatchConflict  ErrorCode = "DISPATCH_CONFLICT"
	ErrCodeNoneWaiting       ErrorCode = "NONE_WAITING"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeRecipientUnresolved    ErrorCode = "RECIPIENT_UNRESOLVED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeDailyLimitReached  ErrorCode = "DAILY_LIMIT_REACHED"
	ErrCodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"
)

// Sentinel errors for call sites that branch with errors.Is. Constructors below
// wrap these so a StandardError still matches the sentinel.
var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrServiceNotFound   = errors.New("service not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoneWaiting       = errors.New("no tickets waiting")
	ErrDispatchConflict  = errors.New("dispatch conflict")
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	sentinel error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel so errors.Is works across layers.
func (e *StandardError) Unwrap() error {
	return e.sentinel
}

// ==========================
// 2. Error Constructors
// ==========================

// NewTicketNotFoundError creates a non-retryable lookup error.
func NewTicketNotFoundError(ticketID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTicketNotFound,
		Message:   "Ticket not found",
		Details:   fmt.Sprintf("ticketId: %s", ticketID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrTicketNotFound,
	}
}

// NewServiceNotFoundError creates a non-retryable lookup error.
func NewServiceNotFoundError(serviceID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeServiceNotFound,
		Message:   "Service not found",
		Details:   fmt.Sprintf("serviceId: %s", serviceID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrServiceNotFound,
	}
}

// NewInvalidTransitionError creates a non-retryable state machine violation.
func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Requested status change violates the ticket state machine",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrInvalidTransition,
	}
}

// NewNoneWaitingError signals an empty (or fully contested) waiting pool.
func NewNoneWaitingError(scope string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoneWaiting,
		Message:   "No tickets waiting in scope",
		Details:   fmt.Sprintf("scope: %s", scope),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrNoneWaiting,
	}
}

// NewDispatchConflictError records a lost compare-and-swap race.
func NewDispatchConflictError(ticketID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDispatchConflict,
		Message:   "Another caller dispatched the ticket first",
		Details:   fmt.Sprintf("ticketId: %s", ticketID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrDispatchConflict,
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecipientUnresolvedError signals that a recipient has no delivery binding.
func NewRecipientUnresolvedError(recipient string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecipientUnresolved,
		Message:   "No delivery target bound for recipient",
		Details:   fmt.Sprintf("recipient: %s", recipient),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable request validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDailyLimitReachedError creates a non-retryable booking policy error.
func NewDailyLimitReachedError(recipient string, limit int) *StandardError {
	return &StandardError{
		Code:      ErrCodeDailyLimitReached,
		Message:   "Daily ticket limit reached for recipient",
		Details:   fmt.Sprintf("recipient: %s, limit: %d", recipient, limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewVerificationFailedError creates a non-retryable code verification error.
func NewVerificationFailedError(recipient string) *StandardError {
	return &StandardError{
		Code:      ErrCodeVerificationFailed,
		Message:   "Verification code invalid or expired",
		Details:   fmt.Sprintf("recipient: %s", recipient),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
