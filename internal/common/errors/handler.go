// internal/common/errors/handler.go
package errors

import (
	"net/http"
	"time"
)

// Normalize ensures any error surfaces as a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatus maps standardized error codes onto HTTP response codes for the
// API glue layer.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeTicketNotFound, ErrCodeServiceNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidTransition, ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeNoneWaiting:
		return http.StatusOK
	case ErrCodeDispatchConflict:
		return http.StatusConflict
	case ErrCodeDailyLimitReached:
		return http.StatusTooManyRequests
	case ErrCodeVerificationFailed:
		return http.StatusForbidden
	case ErrCodeQueryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory buckets codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeTicketNotFound, ErrCodeServiceNotFound:
		return "not_found"
	case ErrCodeInvalidTransition, ErrCodeValidationFailed, ErrCodeDailyLimitReached, ErrCodeVerificationFailed:
		return "business_rule"
	case ErrCodeDispatchConflict, ErrCodeNoneWaiting:
		return "dispatch"
	case ErrCodeNotificationSendFailed, ErrCodeRecipientUnresolved:
		return "notification"
	case ErrCodeDatabaseConnectionFailed, ErrCodeQueryExecutionFailed, ErrCodeQueryTimeout:
		return "storage"
	default:
		return "internal"
	}
}
