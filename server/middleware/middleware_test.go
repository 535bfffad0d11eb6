package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/server/middleware"
)

func bufferLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "test", buf)
}

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

func TestRecovery_NoPanic(t *testing.T) {
	handler := middleware.Recovery(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRecovery_Panic(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.Recovery(bufferLogger(&buf))(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("test panic")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/runs", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body["error"] != "Internal server error" {
		t.Fatalf("unexpected error message: %s", body["error"])
	}
	if !strings.Contains(buf.String(), "test panic") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID_GeneratesID(t *testing.T) {
	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(middleware.RequestIDHeader) == "" {
			t.Error("expected X-Request-Id in request headers")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected X-Request-Id in response headers")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "custom-id-123")
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get(middleware.RequestIDHeader); got != "custom-id-123" {
		t.Fatalf("expected custom-id-123, got %s", got)
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func corsHandler(t *testing.T, cfg *middleware.CORSConfig, reached *bool) http.Handler {
	t.Helper()
	return middleware.CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS_ReadOrigin(t *testing.T) {
	var reached bool
	handler := corsHandler(t, &middleware.CORSConfig{ReadOrigins: []string{"*"}}, &reached)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/runs", http.NoBody)
	req.Header.Set("Origin", "https://dashboard.example.com")
	handler.ServeHTTP(rr, req)

	if !reached || rr.Code != http.StatusOK {
		t.Fatalf("GET from read origin: reached=%t code=%d", reached, rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
}

func TestCORS_ReadOriginCannotWrite(t *testing.T) {
	cfg := &middleware.CORSConfig{ReadOrigins: []string{"*"}}
	for _, method := range []string{"POST", "DELETE"} {
		var reached bool
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/runs", strings.NewReader(`{"logical_date":"2021-10-27"}`))
		req.Header.Set("Origin", "https://dashboard.example.com")
		corsHandler(t, cfg, &reached).ServeHTTP(rr, req)

		if reached || rr.Code != http.StatusForbidden {
			t.Fatalf("%s from read origin: reached=%t code=%d", method, reached, rr.Code)
		}
	}
}

func TestCORS_WriteOrigin(t *testing.T) {
	var reached bool
	cfg := &middleware.CORSConfig{ReadOrigins: []string{"*"}, WriteOrigins: []string{"https://ops.example.com"}}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/runs/r1", http.NoBody)
	req.Header.Set("Origin", "https://ops.example.com")
	corsHandler(t, cfg, &reached).ServeHTTP(rr, req)

	if !reached || rr.Header().Get("Access-Control-Allow-Origin") != "https://ops.example.com" {
		t.Fatalf("DELETE from write origin: reached=%t headers=%v", reached, rr.Header())
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := &middleware.CORSConfig{
		ReadOrigins:    []string{"*"},
		WriteOrigins:   []string{"https://ops.example.com"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         10 * time.Minute,
	}
	preflight := func(origin, method string) *httptest.ResponseRecorder {
		var reached bool
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("OPTIONS", "/runs", http.NoBody)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", method)
		corsHandler(t, cfg, &reached).ServeHTTP(rr, req)
		if reached {
			t.Fatal("handler should not be called for OPTIONS preflight")
		}
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected 204 for preflight, got %d", rr.Code)
		}
		return rr
	}

	rr := preflight("https://ops.example.com", "POST")
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, HEAD, POST, DELETE" {
		t.Fatalf("write origin methods = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Fatalf("max age = %q", got)
	}

	rr = preflight("https://dashboard.example.com", "DELETE")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("read origin allowed to DELETE: %q", got)
	}
	rr = preflight("https://dashboard.example.com", "GET")
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, HEAD" {
		t.Fatalf("read origin methods = %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	var reached bool
	cfg := &middleware.CORSConfig{ReadOrigins: []string{"https://allowed.com"}}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("Origin", "https://evil.com")
	corsHandler(t, cfg, &reached).ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for disallowed origin, got %s", got)
	}
}

// ---------------------------------------------------------------------------
// RequestLogger
// ---------------------------------------------------------------------------

func TestRequestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.RequestLogger(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/runs/missing", http.NoBody))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "warn" {
		t.Fatalf("level = %v, want warn", entry["level"])
	}
	if entry["path"] != "/runs/missing" {
		t.Fatalf("path = %v", entry["path"])
	}
	if entry[logger.FieldStatus] != float64(404) {
		t.Fatalf("status = %v", entry[logger.FieldStatus])
	}
}

func TestRequestLogger_SkipsHealthPaths(t *testing.T) {
	var buf bytes.Buffer
	called := false
	handler := middleware.RequestLogger(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", http.NoBody))

	if !called {
		t.Error("handler should still be called for health endpoints")
	}
	if buf.Len() != 0 {
		t.Fatalf("health request was logged: %s", buf.String())
	}
}

// ---------------------------------------------------------------------------
// BodySizeLimit
// ---------------------------------------------------------------------------

func TestBodySizeLimit(t *testing.T) {
	handler := middleware.BodySizeLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/runs", strings.NewReader("small")))
	if rr.Code != http.StatusOK {
		t.Fatalf("small body: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/runs", strings.NewReader("a body that is too large")))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body: expected 413, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Chain
// ---------------------------------------------------------------------------

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}

	handler := middleware.Chain(mark("m1"), mark("m2"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))

	expected := []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("order = %v, want %v", order, expected)
	}
}

// ---------------------------------------------------------------------------
// statusWriter: Flush support
// ---------------------------------------------------------------------------

type flushRecorder struct {
	http.ResponseWriter
	flushed bool
}

func (f *flushRecorder) Flush() { f.flushed = true }

func TestStatusWriter_Flush(t *testing.T) {
	fr := &flushRecorder{ResponseWriter: httptest.NewRecorder()}

	handler := middleware.RequestLogger(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(fr, httptest.NewRequest("GET", "/runs", http.NoBody))

	if !fr.flushed {
		t.Error("expected Flush to be delegated to underlying writer")
	}
}
