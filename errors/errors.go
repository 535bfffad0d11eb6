package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Pipeline constructors ---

// SensorTimeout reports that a sensor polled for its whole window without a ready result.
func SensorTimeout(sensor string, window time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeSensorTimeout, Message: fmt.Sprintf("sensor %s not ready within %s", sensor, window),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: false,
		Details: map[string]any{"sensor": sensor, "timeout": window.String()},
	}
}

// SensorError reports a check fault that stopped a sensor early.
func SensorError(sensor string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeSensorError, Message: fmt.Sprintf("sensor %s check failed", sensor),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"sensor": sensor}, Cause: cause,
	}
}

// FetchNetwork reports a transport-level failure talking to the source API.
func FetchNetwork(url string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeFetchNetwork, Message: "source API unreachable",
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"url": url}, Cause: cause,
	}
}

// FetchBadStatus reports a non-success HTTP status from the source API.
func FetchBadStatus(url string, status int) *AppError {
	return &AppError{
		Code: ErrCodeFetchBadStatus, Message: fmt.Sprintf("source API returned HTTP %d", status),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"url": url, "status": status},
	}
}

// FetchMalformedBody reports a response body that is not a JSON array or object.
func FetchMalformedBody(url string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeFetchMalformedBody, Message: "source API returned a malformed body",
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"url": url}, Cause: cause,
	}
}

// LoadConnection reports that the document store could not be reached during a load.
func LoadConnection(collection string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeLoadConnection, Message: "document store unreachable",
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"collection": collection}, Cause: cause,
	}
}

// LoadWriteRejected reports that the document store refused the write.
func LoadWriteRejected(collection string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeLoadWriteRejected, Message: "document store rejected the write",
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"collection": collection}, Cause: cause,
	}
}

// LoadMissingBatch reports that no record batch was handed off for the run.
func LoadMissingBatch(runID string) *AppError {
	return &AppError{
		Code: ErrCodeLoadMissingBatch, Message: "no record batch handed off for run",
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"run_id": runID},
	}
}

// Cancelled reports that a run was cancelled while the task was in flight.
func Cancelled(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: "cancelled",
		HTTPStatus: http.StatusConflict, Retryable: false, Cause: cause,
	}
}

// TaskTimeout reports that a single task attempt exceeded its time limit.
func TaskTimeout(task string, limit time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeTaskTimeout, Message: fmt.Sprintf("task %s exceeded %s", task, limit),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"task": task, "timeout": limit.String()},
	}
}

// --- Common constructors ---

// ConnectionFailed creates a new AppError for a failed connection to a service.
func ConnectionFailed(service string) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("Unable to connect to %s.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// Conflict creates a new AppError for a conflict with the current state of the resource.
func Conflict(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: reason,
		HTTPStatus: http.StatusConflict, Retryable: false,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// DatabaseError creates a new AppError for a database error.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A database error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}
