package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type testState struct {
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

// newTestClient creates a Client backed by miniredis.
func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	client, err := New(Config{Addr: mini.Addr()}, nil)
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mini
}

func TestTypedStore_SaveAndLoad(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	if err := store.Save(ctx, "k1", &testState{Count: 5, Tags: []string{"a", "b"}}, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil || got.Count != 5 || len(got.Tags) != 2 {
		t.Fatalf("expected Count=5, Tags=2, got %+v", got)
	}
}

func TestTypedStore_LoadMissing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")

	got, err := store.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %+v", got)
	}
}

func TestTypedStore_SaveIfAbsent(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	ok, err := store.SaveIfAbsent(ctx, "k1", &testState{Count: 1}, 0)
	if err != nil || !ok {
		t.Fatalf("expected first save to win, ok=%v err=%v", ok, err)
	}
	ok, err = store.SaveIfAbsent(ctx, "k1", &testState{Count: 2}, 0)
	if err != nil || ok {
		t.Fatalf("expected second save to be refused, ok=%v err=%v", ok, err)
	}
	got, _ := store.Load(ctx, "k1")
	if got == nil || got.Count != 1 {
		t.Fatalf("expected original value kept, got %+v", got)
	}
}

func TestTypedStore_Take(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	_ = store.Save(ctx, "k1", &testState{Count: 7}, 0)
	got, err := store.Take(ctx, "k1")
	if err != nil || got == nil || got.Count != 7 {
		t.Fatalf("expected to take Count=7, got %+v err=%v", got, err)
	}
	again, err := store.Take(ctx, "k1")
	if err != nil || again != nil {
		t.Fatalf("expected key gone after take, got %+v err=%v", again, err)
	}
}

func TestTypedStore_Delete(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	_ = store.Save(ctx, "k1", &testState{Count: 1}, 0)
	existed, err := store.Delete(ctx, "k1")
	if err != nil || !existed {
		t.Fatalf("expected delete of existing key, existed=%v err=%v", existed, err)
	}
	existed, _ = store.Delete(ctx, "k1")
	if existed {
		t.Error("expected second delete to report missing key")
	}
}

func TestTypedStore_TTL(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	if err := store.Save(ctx, "k1", &testState{Count: 1}, 2*time.Second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	mini.FastForward(3 * time.Second)

	got, err := store.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("Load after TTL failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after TTL expiration, got %+v", got)
	}
}

func TestTypedStore_KeyPrefix(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[testState](client, "caseflow:handoff")
	_ = store.Save(context.Background(), "run-1", &testState{Count: 42}, 0)

	if !mini.Exists("caseflow:handoff:run-1") {
		t.Fatal("expected prefixed key in redis")
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	mini := miniredis.RunT(t)
	c, err := NewComponent(Config{Addr: mini.Addr()}, nil)
	if err != nil {
		t.Fatalf("NewComponent: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(context.Background()); h.Status != "healthy" {
		t.Errorf("expected healthy, got %+v", h)
	}
	mini.Close()
	if h := c.Health(context.Background()); h.Status != "unhealthy" {
		t.Errorf("expected unhealthy after server stop, got %+v", h)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
