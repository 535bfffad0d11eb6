package docstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConnection means the store could not be reached.
	ErrConnection = errors.New("docstore: connection failed")
	// ErrRejected means the store was reachable but refused the operation.
	ErrRejected = errors.New("docstore: operation rejected")
)

// Error describes a failed store operation. errors.Is matches both its kind
// (ErrConnection or ErrRejected) and the underlying cause.
type Error struct {
	Op         string
	Collection string
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("docstore %s %s: %v: %v", e.Op, e.Collection, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Store is a collection-oriented document store.
type Store interface {
	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
	// FindOne returns the first document matching filter.
	FindOne(ctx context.Context, collection string, filter Filter) (Document, bool, error)
	// Find returns every document matching filter, in insertion order.
	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)
	// Count returns how many documents a partition holds.
	Count(ctx context.Context, collection, partition string) (int64, error)
	// InsertMany appends docs to a partition.
	InsertMany(ctx context.Context, collection, partition string, docs []Document) (int, error)
	// DeleteMany removes a partition and returns how many documents it held.
	DeleteMany(ctx context.Context, collection, partition string) (int64, error)
	// ReplacePartition atomically swaps a partition's contents for docs.
	ReplacePartition(ctx context.Context, collection, partition string, docs []Document) (int, error)
	Close() error
}

// MarkHealthy writes the health marker document the store sensor looks for.
// Existing markers in the collection are replaced.
func MarkHealthy(ctx context.Context, s Store, collection string, marker Document) error {
	_, err := s.ReplacePartition(ctx, collection, "", []Document{marker})
	return err
}

// ClearHealthy removes the health marker so the store sensor reports not ready.
func ClearHealthy(ctx context.Context, s Store, collection string) error {
	_, err := s.DeleteMany(ctx, collection, "")
	return err
}
