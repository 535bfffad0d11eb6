package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Sensor errors
const (
	// ErrCodeSensorTimeout indicates a sensor exhausted its poll window.
	// The window itself is the budget, so this is never retried.
	ErrCodeSensorTimeout ErrorCode = "SENSOR_TIMEOUT"
	// ErrCodeSensorError indicates the check hit a connectivity or protocol fault.
	ErrCodeSensorError ErrorCode = "SENSOR_ERROR"
)

// Fetch errors
const (
	ErrCodeFetchNetwork       ErrorCode = "FETCH_NETWORK"
	ErrCodeFetchBadStatus     ErrorCode = "FETCH_BAD_STATUS"
	ErrCodeFetchMalformedBody ErrorCode = "FETCH_MALFORMED_BODY"
)

// Load errors
const (
	ErrCodeLoadConnection    ErrorCode = "LOAD_CONNECTION"
	ErrCodeLoadWriteRejected ErrorCode = "LOAD_WRITE_REJECTED"
	// ErrCodeLoadMissingBatch means the loader ran without a handed-off batch.
	// It signals a graph-ordering defect and is surfaced, not retried.
	ErrCodeLoadMissingBatch ErrorCode = "LOAD_MISSING_BATCH"
)

// Execution errors
const (
	ErrCodeCancelled   ErrorCode = "CANCELLED"
	ErrCodeTaskTimeout ErrorCode = "TASK_TIMEOUT"
	// ErrCodeInterrupted marks a run whose process exited before it finished.
	ErrCodeInterrupted ErrorCode = "INTERRUPTED"
)

// Connection/Availability errors (retryable)
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
)

// Resource and validation errors
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
)

// Internal errors
const (
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeSensorError:        true,
	ErrCodeFetchNetwork:       true,
	ErrCodeFetchBadStatus:     true,
	ErrCodeFetchMalformedBody: true,
	ErrCodeLoadConnection:     true,
	ErrCodeLoadWriteRejected:  true,
	ErrCodeTaskTimeout:        true,
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeDatabaseError:      true,
	ErrCodeSensorTimeout:      false,
	ErrCodeLoadMissingBatch:   false,
	ErrCodeCancelled:          false,
	ErrCodeInterrupted:        false,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
