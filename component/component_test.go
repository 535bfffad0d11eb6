package component

import (
	"context"
	"errors"
	"testing"
)

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	events   *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.events != nil {
		*m.events = append(*m.events, "start:"+m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.events != nil {
		*m.events = append(*m.events, "stop:"+m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health { return m.health }

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(&mockComponent{name: "database"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockComponent{name: "database"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if r.Get("database") == nil || r.Get("missing") != nil {
		t.Error("unexpected Get results")
	}
}

func TestStartStopOrder(t *testing.T) {
	var events []string
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "database", events: &events})
	_ = r.Register(&mockComponent{name: "redis", events: &events})
	_ = r.Register(&mockComponent{name: "server", events: &events})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll: %v", err)
	}

	want := []string{"start:database", "start:redis", "start:server", "stop:server", "stop:redis", "stop:database"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, events)
		}
	}
}

func TestStartFailureStopsStarted(t *testing.T) {
	var events []string
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "database", events: &events})
	_ = r.Register(&mockComponent{name: "redis", startErr: errors.New("refused"), events: &events})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if events[len(events)-1] != "stop:database" {
		t.Errorf("expected database to be stopped after failure, got %v", events)
	}
}

func TestStopAllJoinsErrors(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "a", stopErr: errors.New("a failed")})
	_ = r.Register(&mockComponent{name: "b", stopErr: errors.New("b failed")})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected stop errors")
	}
	// a second stop is a no-op
	if err := r.StopAll(context.Background()); err != nil {
		t.Errorf("expected nil on second stop, got %v", err)
	}
}

func TestHealthy(t *testing.T) {
	r := NewRegistry(nil)
	_ = r.Register(&mockComponent{name: "database", health: Health{Name: "database", Status: StatusHealthy}})
	if !r.Healthy(context.Background()) {
		t.Error("expected healthy")
	}
	_ = r.Register(&mockComponent{name: "redis", health: Health{Name: "redis", Status: StatusUnhealthy}})
	if r.Healthy(context.Background()) {
		t.Error("expected unhealthy")
	}
	if got := len(r.HealthAll(context.Background())); got != 2 {
		t.Errorf("expected 2 health entries, got %d", got)
	}
}
