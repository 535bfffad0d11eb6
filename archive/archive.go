// Package archive keeps a copy of every fetched batch outside the handoff
// store, so a day's source data can be inspected or replayed after the
// handoff slot is released. Objects live on the local filesystem or in S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/kbukum/caseflow/record"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("archive: object not found")

// Object describes one archived object.
type Object struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Store is a flat key/object store. Keys use forward slashes.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader) error
	// Get returns ErrNotFound when the key is absent. The caller closes the
	// returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns the objects under prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Key is where the batch of one run is archived:
// <dag_id>/<logical_date>/<run_id>.json.
func Key(dagID, logicalDate, runID string) string {
	return path.Join(dagID, logicalDate, runID+".json")
}

// Archiver writes batches to a Store as JSON.
type Archiver struct {
	store  Store
	prefix string
}

// New returns an Archiver writing under prefix.
func New(store Store, prefix string) *Archiver {
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/")}
}

func (a *Archiver) key(k string) string {
	if a.prefix == "" {
		return k
	}
	return a.prefix + "/" + k
}

// Save archives batch and returns the key it was written to.
func (a *Archiver) Save(ctx context.Context, dagID string, batch record.Batch) (string, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("archive: encode batch: %w", err)
	}
	key := a.key(Key(dagID, batch.LogicalDate, batch.RunID))
	if err := a.store.Put(ctx, key, bytes.NewReader(body)); err != nil {
		return "", err
	}
	return key, nil
}

// Open reads back the batch archived under key.
func (a *Archiver) Open(ctx context.Context, key string) (record.Batch, error) {
	rc, err := a.store.Get(ctx, key)
	if err != nil {
		return record.Batch{}, err
	}
	defer func() { _ = rc.Close() }()

	var batch record.Batch
	dec := json.NewDecoder(rc)
	dec.UseNumber()
	if err := dec.Decode(&batch); err != nil {
		return record.Batch{}, fmt.Errorf("archive: decode %s: %w", key, err)
	}
	return batch, nil
}

// List returns the archived batches of one logical date, or of every date
// when logicalDate is empty.
func (a *Archiver) List(ctx context.Context, dagID, logicalDate string) ([]Object, error) {
	prefix := dagID + "/"
	if logicalDate != "" {
		prefix += logicalDate + "/"
	}
	return a.store.List(ctx, a.key(prefix))
}
