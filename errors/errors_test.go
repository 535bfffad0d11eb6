package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout)
	if !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
	err = New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestTaxonomy_Retryability(t *testing.T) {
	cause := stderrors.New("boom")
	tests := []struct {
		name      string
		err       *AppError
		retryable bool
	}{
		{"sensor timeout", SensorTimeout("check_api", time.Minute), false},
		{"sensor error", SensorError("check_api", cause), true},
		{"fetch network", FetchNetwork("http://x", cause), true},
		{"fetch bad status", FetchBadStatus("http://x", 503), true},
		{"fetch malformed", FetchMalformedBody("http://x", cause), true},
		{"load connection", LoadConnection("daily", cause), true},
		{"load rejected", LoadWriteRejected("daily", cause), true},
		{"load missing batch", LoadMissingBatch("run-1"), false},
		{"cancelled", Cancelled(context.Canceled), false},
		{"task timeout", TaskTimeout("get_data", time.Second), true},
	}

	for _, tt := range tests {
		if tt.err.Retryable != tt.retryable {
			t.Errorf("%s: expected retryable=%v, got %v", tt.name, tt.retryable, tt.err.Retryable)
		}
		if IsRetryableCode(tt.err.Code) != tt.retryable {
			t.Errorf("%s: code table disagrees for %s", tt.name, tt.err.Code)
		}
	}
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := LoadConnection("daily", stderrors.New("connection refused"))
	msg := err.Error()
	if !strings.Contains(msg, "LOAD_CONNECTION") || !strings.Contains(msg, "connection refused") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("root")
	err := FetchNetwork("http://x", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("task get_data: %w", FetchBadStatus("http://x", 500))
	if got := CodeOf(wrapped); got != ErrCodeFetchBadStatus {
		t.Errorf("expected FETCH_BAD_STATUS, got %s", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", got)
	}
	if got := CodeOf(context.Canceled); got != ErrCodeCancelled {
		t.Errorf("expected CANCELLED, got %s", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("expected empty code, got %s", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if !IsRetryable(stderrors.New("transient")) {
		t.Error("plain errors should be retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Error("context cancellation should not be retryable")
	}
	if IsRetryable(fmt.Errorf("wrap: %w", LoadMissingBatch("r"))) {
		t.Error("missing batch should not be retryable")
	}
}

func TestToResponse(t *testing.T) {
	resp := NotFound("run", "abc").ToResponse()
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", resp.Error.Code)
	}
	if resp.Error.Details["id"] != "abc" {
		t.Errorf("expected id=abc, got %v", resp.Error.Details["id"])
	}
}
