package handoff

import (
	"context"
	"time"

	"github.com/kbukum/caseflow/redis"
)

// DefaultTTL bounds how long an untaken value survives in Redis.
const DefaultTTL = 24 * time.Hour

// Redis is a Store on top of a Redis TypedStore. Values are JSON encoded,
// so T must round-trip through encoding/json.
type Redis[T any] struct {
	store *redis.TypedStore[T]
	ttl   time.Duration
}

// NewRedis creates a Redis-backed Store under keyPrefix.
func NewRedis[T any](client *redis.Client, keyPrefix string, ttl time.Duration) *Redis[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis[T]{store: redis.NewTypedStore[T](client, keyPrefix), ttl: ttl}
}

func (r *Redis[T]) Put(ctx context.Context, key string, v T) error {
	ok, err := r.store.SaveIfAbsent(ctx, key, &v, r.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyWritten
	}
	return nil
}

func (r *Redis[T]) Take(ctx context.Context, key string) (T, error) {
	var zero T
	v, err := r.store.Take(ctx, key)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, ErrNotFound
	}
	return *v, nil
}

func (r *Redis[T]) Release(ctx context.Context, key string) error {
	_, err := r.store.Delete(ctx, key)
	return err
}
