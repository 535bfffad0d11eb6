package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/caseflow/events"
	"github.com/kbukum/caseflow/logger"
)

type fakeWriter struct {
	fail   int
	calls  int
	msgs   []kafkago.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.calls++
	if w.fail > 0 {
		w.fail--
		return kafkago.LeaderNotAvailable
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testConfig() Config {
	cfg := Config{Enabled: true, Retries: 3}
	cfg.ApplyDefaults()
	return cfg
}

func TestPublishKeysByRun(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, testConfig(), logger.NewNop())

	at := time.Date(2021, 10, 28, 0, 0, 5, 0, time.UTC)
	e := events.Event{Type: events.TaskTransition, RunID: "run-1", Task: "get_data", Attempt: 2, Status: "retrying", At: at}
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "run-1" || !m.Time.Equal(at) {
		t.Fatalf("key = %s time = %s", m.Key, m.Time)
	}
	if len(m.Headers) != 1 || string(m.Headers[0].Value) != string(events.TaskTransition) {
		t.Fatalf("headers = %+v", m.Headers)
	}
	var got events.Event
	if err := json.Unmarshal(m.Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Task != "get_data" || got.Attempt != 2 {
		t.Fatalf("event = %+v", got)
	}
}

func TestPublishRetriesBrokerErrors(t *testing.T) {
	w := &fakeWriter{fail: 2}
	p := newPublisher(w, testConfig(), nil)
	if err := p.Publish(context.Background(), events.Event{RunID: "r"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if w.calls != 3 {
		t.Fatalf("calls = %d, want 3", w.calls)
	}

	w = &fakeWriter{fail: 5}
	p = newPublisher(w, testConfig(), nil)
	err := p.Publish(context.Background(), events.Event{RunID: "r"})
	if !errors.Is(err, kafkago.LeaderNotAvailable) {
		t.Fatalf("err = %v", err)
	}
	if w.calls != 3 {
		t.Fatalf("calls = %d, want 3", w.calls)
	}
}

func TestPublishAfterClose(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, testConfig(), nil)
	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("close: %v closed=%v", err, w.closed)
	}
	if err := p.Publish(context.Background(), events.Event{RunID: "r"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	var off Config
	if err := off.Validate(); err != nil {
		t.Fatalf("disabled config rejected: %v", err)
	}
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg.Compression = "brotli"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected compression error")
	}
	if _, err := NewPublisher(Config{}, nil); err == nil {
		t.Fatal("expected disabled error")
	}
}
