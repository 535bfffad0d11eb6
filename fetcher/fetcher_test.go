package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/handoff"
	"github.com/kbukum/caseflow/httpclient"
	"github.com/kbukum/caseflow/record"
)

func newFetcher(t *testing.T, handler http.HandlerFunc, cfg Config) (*Fetcher, *handoff.Memory[record.Batch]) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := httpclient.New(httpclient.Config{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cfg.URL = srv.URL
	store := handoff.NewMemory[record.Batch]()
	return New(client, store, cfg, nil), store
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestFetchArray(t *testing.T) {
	f, store := newFetcher(t, respond(200, `[{"txn_date":"2021-10-27","new_case":50},{"txn_date":"2021-10-28","new_case":12}]`), Config{})
	batch, err := f.Fetch(context.Background(), "run-1", "2021-10-28")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if batch.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", batch.Len())
	}
	if n, _ := batch.Records[0]["new_case"].(json.Number).Int64(); n != 50 {
		t.Errorf("expected new_case 50, got %v", batch.Records[0]["new_case"])
	}

	handed, err := store.Take(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("batch not handed off: %v", err)
	}
	if handed.Len() != 2 || handed.LogicalDate != "2021-10-28" || handed.RunID != "run-1" {
		t.Errorf("unexpected handed batch %+v", handed)
	}
}

func TestFetchObjectIsOneRecord(t *testing.T) {
	f, _ := newFetcher(t, respond(200, `{"txn_date":"2021-10-27","new_case":50}`), Config{})
	batch, err := f.Fetch(context.Background(), "run-1", "2021-10-27")
	if err != nil || batch.Len() != 1 {
		t.Fatalf("expected one record, got %d (%v)", batch.Len(), err)
	}
}

func TestFetchFilterByDate(t *testing.T) {
	body := `[{"txn_date":"2021-10-27","new_case":50},{"txn_date":"2021-10-28","new_case":12},{"new_case":1}]`
	f, _ := newFetcher(t, respond(200, body), Config{FilterByDate: true})
	batch, err := f.Fetch(context.Background(), "run-1", "2021-10-28")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if batch.Len() != 1 || batch.Records[0]["txn_date"] != "2021-10-28" {
		t.Fatalf("expected only the 2021-10-28 record, got %+v", batch.Records)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
		code apperrors.ErrorCode
	}{
		{"bad status", respond(http.StatusServiceUnavailable, `{"message":"down"}`), apperrors.ErrCodeFetchBadStatus},
		{"not found", respond(http.StatusNotFound, ``), apperrors.ErrCodeFetchBadStatus},
		{"malformed", respond(200, `[{"txn_date":`), apperrors.ErrCodeFetchMalformedBody},
		{"scalar", respond(200, `42`), apperrors.ErrCodeFetchMalformedBody},
		{"array of scalars", respond(200, `[1,2]`), apperrors.ErrCodeFetchMalformedBody},
		{"empty", respond(200, ``), apperrors.ErrCodeFetchMalformedBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, store := newFetcher(t, tt.h, Config{})
			_, err := f.Fetch(context.Background(), "run-1", "2021-10-27")
			if got := apperrors.CodeOf(err); got != tt.code {
				t.Fatalf("expected %s, got %s (%v)", tt.code, got, err)
			}
			if !apperrors.IsRetryable(err) {
				t.Error("fetch errors are retryable")
			}
			if store.Len() != 0 {
				t.Error("failed fetch must not hand off")
			}
		})
	}
}

func TestFetchNetwork(t *testing.T) {
	srv := httptest.NewServer(respond(200, `[]`))
	url := srv.URL
	srv.Close()

	client, _ := httpclient.New(httpclient.Config{Timeout: time.Second})
	f := New(client, handoff.NewMemory[record.Batch](), Config{URL: url}, nil)
	_, err := f.Fetch(context.Background(), "run-1", "2021-10-27")
	if apperrors.CodeOf(err) != apperrors.ErrCodeFetchNetwork {
		t.Fatalf("expected FETCH_NETWORK, got %v", err)
	}
}

func TestFetchTwiceKeepsFirstBatch(t *testing.T) {
	f, store := newFetcher(t, respond(200, `[{"a":1}]`), Config{})
	ctx := context.Background()
	if _, err := f.Fetch(ctx, "run-1", "2021-10-27"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := f.Fetch(ctx, "run-1", "2021-10-27"); err != nil {
		t.Fatalf("repeat fetch should not fail: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one pending batch, got %d", store.Len())
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.URL != DefaultURL || cfg.DateField != "txn_date" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if err := (&Config{URL: "ftp://x"}).Validate(); err == nil {
		t.Error("expected non-http url to fail")
	}
}
