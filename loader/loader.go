// Package loader writes a handed-off record batch into the document store.
//
// Each run's batch lands in the partition named by its logical date. The
// partition is replaced wholesale so loading the same date twice leaves one
// copy of the data.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/caseflow/docstore"
	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/handoff"
	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/record"
)

// Config names the target collection.
type Config struct {
	Database   string `yaml:"database" mapstructure:"database"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// ApplyDefaults targets covid_case.daily.
func (c *Config) ApplyDefaults() {
	if c.Database == "" {
		c.Database = "covid_case"
	}
	if c.Collection == "" {
		c.Collection = "daily"
	}
}

// Validate checks the target is named.
func (c *Config) Validate() error {
	if c.Database == "" || c.Collection == "" {
		return fmt.Errorf("loader database and collection are required")
	}
	return nil
}

// Namespace returns the qualified collection name.
func (c Config) Namespace() string {
	return docstore.Namespace(c.Database, c.Collection)
}

// Loader drains the handoff store into the document store.
type Loader struct {
	store   docstore.Store
	handoff handoff.Store[record.Batch]
	cfg     Config
	log     *logger.Logger
}

// New creates a Loader.
func New(store docstore.Store, batches handoff.Store[record.Batch], cfg Config, log *logger.Logger) *Loader {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{store: store, handoff: batches, cfg: cfg, log: log.WithComponent("loader")}
}

// Load takes the batch for runID and replaces the logicalDate partition with
// it, returning the number of documents written. If the write fails the
// batch goes back into the handoff store so a retry can pick it up.
func (l *Loader) Load(ctx context.Context, runID, logicalDate string) (int, error) {
	batch, err := l.handoff.Take(ctx, runID)
	if err != nil {
		if errors.Is(err, handoff.ErrNotFound) {
			l.log.Error("no batch handed off; fetch did not run first", logger.Fields(
				logger.FieldRunID, runID,
				logger.FieldLogicalDate, logicalDate,
				logger.FieldErrorCode, string(apperrors.ErrCodeLoadMissingBatch),
			))
			return 0, apperrors.LoadMissingBatch(runID)
		}
		return 0, apperrors.LoadConnection(l.cfg.Namespace(), fmt.Errorf("take batch: %w", err))
	}

	docs := make([]docstore.Document, len(batch.Records))
	for i, r := range batch.Records {
		docs[i] = docstore.Document(r)
	}

	start := time.Now()
	n, err := l.store.ReplacePartition(ctx, l.cfg.Namespace(), logicalDate, docs)
	if err != nil {
		l.reoffer(runID, batch)
		return 0, l.classify(err)
	}

	l.log.Info("loaded batch", logger.Fields(
		logger.FieldRunID, runID,
		logger.FieldLogicalDate, logicalDate,
		"collection", l.cfg.Namespace(),
		"documents", n,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return n, nil
}

// reoffer puts the batch back after a failed write. It uses a fresh context
// so a cancelled run still leaves the batch releasable.
func (l *Loader) reoffer(runID string, batch record.Batch) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.handoff.Put(ctx, runID, batch); err != nil {
		l.log.Warn("could not re-offer batch", logger.ErrorFields("reoffer", err))
	}
}

func (l *Loader) classify(err error) error {
	if errors.Is(err, docstore.ErrConnection) {
		return apperrors.LoadConnection(l.cfg.Namespace(), err)
	}
	return apperrors.LoadWriteRejected(l.cfg.Namespace(), err)
}
