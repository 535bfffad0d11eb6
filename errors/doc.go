// Package errors provides the coded error type shared by every caseflow
// package. Each failure that can end a task carries an ErrorCode, a retryable
// flag the executor consults, and an HTTP status used by the status API.
package errors
