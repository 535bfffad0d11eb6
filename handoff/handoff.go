package handoff

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyWritten is returned by Put when the key already holds a value.
	ErrAlreadyWritten = errors.New("handoff: key already written")
	// ErrNotFound is returned by Take when the key holds nothing.
	ErrNotFound = errors.New("handoff: key not found")
)

// Store is a keyed single-producer single-consumer channel.
type Store[T any] interface {
	// Put writes v under key. It fails with ErrAlreadyWritten if the key
	// holds an untaken value.
	Put(ctx context.Context, key string, v T) error
	// Take removes and returns the value under key, or ErrNotFound.
	Take(ctx context.Context, key string) (T, error)
	// Release drops whatever key holds. Releasing an empty key is not an error.
	Release(ctx context.Context, key string) error
}
