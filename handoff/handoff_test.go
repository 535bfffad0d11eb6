package handoff

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/caseflow/record"
	"github.com/kbukum/caseflow/redis"
)

func stores(t *testing.T, fn func(t *testing.T, s Store[record.Batch])) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory[record.Batch]()) })
	t.Run("redis", func(t *testing.T) {
		mini := miniredis.RunT(t)
		client, err := redis.New(redis.Config{Addr: mini.Addr()}, nil)
		if err != nil {
			t.Fatalf("redis client: %v", err)
		}
		t.Cleanup(func() { _ = client.Close() })
		fn(t, NewRedis[record.Batch](client, "caseflow:handoff", time.Hour))
	})
}

func batch(runID string, n int) record.Batch {
	b := record.Batch{RunID: runID, LogicalDate: "2021-10-27"}
	for i := 0; i < n; i++ {
		b.Records = append(b.Records, record.Record{"txn_date": "2021-10-27", "idx": float64(i)})
	}
	return b
}

func TestPutTake(t *testing.T) {
	stores(t, func(t *testing.T, s Store[record.Batch]) {
		ctx := context.Background()
		if err := s.Put(ctx, "run-1", batch("run-1", 3)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := s.Take(ctx, "run-1")
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		if got.RunID != "run-1" || got.Len() != 3 {
			t.Errorf("unexpected batch %+v", got)
		}
		if _, err := s.Take(ctx, "run-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected second take to miss, got %v", err)
		}
	})
}

func TestPutIsWriteOnce(t *testing.T) {
	stores(t, func(t *testing.T, s Store[record.Batch]) {
		ctx := context.Background()
		_ = s.Put(ctx, "run-1", batch("run-1", 1))
		if err := s.Put(ctx, "run-1", batch("run-1", 5)); !errors.Is(err, ErrAlreadyWritten) {
			t.Fatalf("expected ErrAlreadyWritten, got %v", err)
		}
		got, _ := s.Take(ctx, "run-1")
		if got.Len() != 1 {
			t.Errorf("expected first write kept, got %d records", got.Len())
		}
	})
}

func TestPutBackAfterTake(t *testing.T) {
	stores(t, func(t *testing.T, s Store[record.Batch]) {
		ctx := context.Background()
		_ = s.Put(ctx, "run-1", batch("run-1", 2))
		b, _ := s.Take(ctx, "run-1")
		if err := s.Put(ctx, "run-1", b); err != nil {
			t.Fatalf("re-offer after take: %v", err)
		}
		again, err := s.Take(ctx, "run-1")
		if err != nil || again.Len() != 2 {
			t.Fatalf("expected re-offered batch, got %+v err=%v", again, err)
		}
	})
}

func TestKeysAreIsolated(t *testing.T) {
	stores(t, func(t *testing.T, s Store[record.Batch]) {
		ctx := context.Background()
		_ = s.Put(ctx, "run-1", batch("run-1", 1))
		_ = s.Put(ctx, "run-2", batch("run-2", 2))
		if err := s.Release(ctx, "run-1"); err != nil {
			t.Fatalf("Release: %v", err)
		}
		if err := s.Release(ctx, "run-1"); err != nil {
			t.Fatalf("Release of empty key: %v", err)
		}
		if _, err := s.Take(ctx, "run-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected run-1 released, got %v", err)
		}
		got, err := s.Take(ctx, "run-2")
		if err != nil || got.RunID != "run-2" {
			t.Errorf("expected run-2 untouched, got %+v err=%v", got, err)
		}
	})
}

func TestMemory_SingleConsumer(t *testing.T) {
	s := NewMemory[record.Batch]()
	ctx := context.Background()
	_ = s.Put(ctx, "run-1", batch("run-1", 1))

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Take(ctx, "run-1"); err == nil {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if taken != 1 {
		t.Errorf("expected exactly one consumer to take the batch, got %d", taken)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}
