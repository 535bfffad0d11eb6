package sensor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/caseflow/docstore"
	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/httpclient"
)

// fakeClock advances only when the poll loop waits or a check says so.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2021, 10, 28, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func newSensor(clock *fakeClock, check Check) *Sensor {
	return &Sensor{
		Name:   "check_api",
		Check:  check,
		Config: Config{Interval: 5 * time.Second, Timeout: 100 * time.Second},
		Clock:  clock,
	}
}

func TestReadyOnFirstTruthyCheck(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	s := newSensor(clock, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})

	res := s.Run(context.Background())
	if res.Outcome != Ready {
		t.Fatalf("expected ready, got %s", res.Outcome)
	}
	if res.Checks != 3 || calls != 3 {
		t.Errorf("expected 3 checks, got %d", res.Checks)
	}
	if res.Elapsed != 10*time.Second {
		t.Errorf("expected two intervals elapsed, got %s", res.Elapsed)
	}
}

func TestChecksNoMoreOftenThanInterval(t *testing.T) {
	clock := newFakeClock()
	var times []time.Time
	s := newSensor(clock, func(ctx context.Context) (bool, error) {
		times = append(times, clock.Now())
		return false, nil
	})
	s.Run(context.Background())

	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < 5*time.Second {
			t.Fatalf("checks %d and %d only %s apart", i-1, i, gap)
		}
	}
}

func TestTimedOutAfterWindow(t *testing.T) {
	clock := newFakeClock()
	s := newSensor(clock, func(ctx context.Context) (bool, error) { return false, nil })

	res := s.Run(context.Background())
	if res.Outcome != TimedOut {
		t.Fatalf("expected timed out, got %s", res.Outcome)
	}
	if res.Elapsed <= 100*time.Second {
		t.Errorf("expected elapsed beyond the window, got %s", res.Elapsed)
	}
	// checks at 0,5,...,105
	if res.Checks != 22 {
		t.Errorf("expected 22 checks, got %d", res.Checks)
	}

	err := s.Wait(context.Background())
	if apperrors.CodeOf(err) != apperrors.ErrCodeSensorTimeout {
		t.Fatalf("expected SENSOR_TIMEOUT, got %v", err)
	}
	if apperrors.IsRetryable(err) {
		t.Error("sensor timeout must not be retryable")
	}
}

func TestSlowCheckCountsTowardWindow(t *testing.T) {
	clock := newFakeClock()
	s := newSensor(clock, func(ctx context.Context) (bool, error) {
		clock.Advance(60 * time.Second)
		return false, nil
	})
	res := s.Run(context.Background())
	if res.Outcome != TimedOut || res.Checks != 2 {
		t.Fatalf("expected timeout after 2 slow checks, got %s after %d", res.Outcome, res.Checks)
	}
}

func TestErroredStopsImmediately(t *testing.T) {
	clock := newFakeClock()
	fault := errors.New("connection refused")
	calls := 0
	s := newSensor(clock, func(ctx context.Context) (bool, error) {
		calls++
		if calls == 2 {
			return false, fault
		}
		return false, nil
	})

	res := s.Run(context.Background())
	if res.Outcome != Errored || !errors.Is(res.Err, fault) {
		t.Fatalf("expected errored with fault, got %s %v", res.Outcome, res.Err)
	}
	if calls != 2 {
		t.Errorf("expected polling to stop at the fault, got %d calls", calls)
	}

	calls = 0
	err := s.Wait(context.Background())
	if apperrors.CodeOf(err) != apperrors.ErrCodeSensorError || !apperrors.IsRetryable(err) {
		t.Fatalf("expected retryable SENSOR_ERROR, got %v", err)
	}
}

func TestCancelledAtNextBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sensor{
		Name:   "check_db_connection",
		Config: Config{Interval: time.Hour, Timeout: 2 * time.Hour},
		Check: func(ctx context.Context) (bool, error) {
			return false, nil
		},
	}

	done := make(chan Result, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		if res.Outcome != Cancelled {
			t.Fatalf("expected cancelled, got %s", res.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not observe cancellation")
	}

	if err := s.Wait(ctx); apperrors.CodeOf(err) != apperrors.ErrCodeCancelled {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
}

func TestTransitions(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	var seen []string
	s := newSensor(clock, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 2, nil
	})
	s.OnTransition = func(from, to State) { seen = append(seen, string(from)+">"+string(to)) }
	s.Run(context.Background())

	want := []string{"probing>waiting", "waiting>probing"}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Errorf("expected %v, got %v", want, seen)
	}
}

func TestPollWithSystemClock(t *testing.T) {
	var n int32
	outcome, err := Poll(context.Background(), "fast", func(ctx context.Context) (bool, error) {
		return atomic.AddInt32(&n, 1) >= 2, nil
	}, Config{Interval: time.Millisecond, Timeout: time.Second})
	if outcome != Ready || err != nil {
		t.Fatalf("expected ready, got %s %v", outcome, err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Interval != 5*time.Second || cfg.Timeout != 100*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	bad := Config{Interval: time.Minute, Timeout: time.Second}
	if err := bad.Validate(); err == nil {
		t.Error("expected interval > timeout to fail")
	}
}

func TestHTTPCheck(t *testing.T) {
	var status int32 = http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}))
	client, _ := httpclient.New(httpclient.Config{Timeout: time.Second})
	check := HTTPCheck(client, srv.URL)

	ok, err := check(context.Background())
	if ok || err != nil {
		t.Fatalf("503 should be not ready without error, got ok=%v err=%v", ok, err)
	}
	atomic.StoreInt32(&status, http.StatusOK)
	ok, err = check(context.Background())
	if !ok || err != nil {
		t.Fatalf("200 should be ready, got ok=%v err=%v", ok, err)
	}

	srv.Close()
	if _, err := check(context.Background()); err == nil {
		t.Fatal("unreachable server should be a fault")
	}
}

func TestDocumentCheck(t *testing.T) {
	store := docstore.NewMemory()
	check := DocumentCheck(store, "healthcheck", docstore.Filter{"checked": true})
	ctx := context.Background()

	if ok, err := check(ctx); ok || err != nil {
		t.Fatalf("empty collection should be not ready, got ok=%v err=%v", ok, err)
	}
	_ = docstore.MarkHealthy(ctx, store, "healthcheck", docstore.Document{"checked": true})
	if ok, err := check(ctx); !ok || err != nil {
		t.Fatalf("marker should be ready, got ok=%v err=%v", ok, err)
	}
	_ = store.Close()
	if _, err := check(ctx); err == nil {
		t.Fatal("closed store should be a fault")
	}
}
