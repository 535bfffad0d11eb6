package sse

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/caseflow/events"
	"github.com/kbukum/caseflow/logger"
)

func runningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.NewNop())
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()
	t.Cleanup(func() {
		hub.Stop()
		<-done
	})
	return hub
}

func next(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case f := <-c.Frames():
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return Frame{}
	}
}

func TestHubRoutesByRunFilter(t *testing.T) {
	hub := runningHub(t)
	all := NewClient("all", "")
	one := NewClient("one", "run-1")
	hub.Register(all)
	hub.Register(one)

	ctx := context.Background()
	_ = hub.Publish(ctx, events.Event{Type: events.RunStarted, RunID: "run-2"})
	_ = hub.Publish(ctx, events.Event{Type: events.RunStarted, RunID: "run-1"})

	if f := next(t, all); f.RunID != "run-2" {
		t.Fatalf("all got %s first", f.RunID)
	}
	if f := next(t, all); f.RunID != "run-1" {
		t.Fatalf("all got %s second", f.RunID)
	}
	f := next(t, one)
	if f.RunID != "run-1" || f.Name != string(events.RunStarted) || !strings.Contains(string(f.Data), `"run_id":"run-1"`) {
		t.Fatalf("one got %+v", f)
	}
	select {
	case extra := <-one.Frames():
		t.Fatalf("filtered client got %+v", extra)
	case <-time.After(20 * time.Millisecond):
	}
	if hub.ClientCount() != 2 {
		t.Fatalf("clients = %d", hub.ClientCount())
	}
}

func TestUnregisterClosesFrames(t *testing.T) {
	hub := runningHub(t)
	c := NewClient("c", "")
	hub.Register(c)
	hub.Unregister(c)
	if _, ok := <-c.Frames(); ok {
		t.Fatal("frames still open")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("clients = %d", hub.ClientCount())
	}
}

func TestPublishAfterStop(t *testing.T) {
	hub := NewHub(nil)
	hub.Stop()
	if err := hub.Publish(context.Background(), events.Event{RunID: "r"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v", err)
	}
	if hub.Register(NewClient("late", "")) {
		t.Fatal("registered on a stopped hub")
	}
}

func TestPublishDropsWhenBacklogFull(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < broadcastBuffer; i++ {
		if err := hub.Publish(context.Background(), events.Event{RunID: "r"}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if err := hub.Publish(context.Background(), events.Event{RunID: "r"}); !errors.Is(err, ErrBacklog) {
		t.Fatalf("err = %v", err)
	}
	if hub.Dropped() != 1 {
		t.Fatalf("dropped = %d", hub.Dropped())
	}
}

func TestHandlerStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := runningHub(t)
	r := gin.New()
	r.GET("/events", Handler(hub, time.Minute))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?run_id=run-1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return "", ""
	}

	if name, _ := readEvent(); name != EventConnected {
		t.Fatalf("first event = %s", name)
	}
	for hub.ClientCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	_ = hub.Publish(ctx, events.Event{Type: events.TaskTransition, RunID: "run-2", Task: "get_data"})
	_ = hub.Publish(ctx, events.Event{Type: events.TaskTransition, RunID: "run-1", Task: "check_api", Status: "succeeded"})

	name, data := readEvent()
	if name != string(events.TaskTransition) || !strings.Contains(data, `"task":"check_api"`) {
		t.Fatalf("event = %s %s", name, data)
	}
}
