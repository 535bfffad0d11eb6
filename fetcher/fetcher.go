// Package fetcher pulls the case timeline from the source API and hands the
// parsed batch to the loader.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/handoff"
	"github.com/kbukum/caseflow/httpclient"
	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/record"
)

// DefaultURL is the public case-timeline endpoint.
const DefaultURL = "https://covid19.ddc.moph.go.th/api/Cases/timeline-cases-all"

// Config selects what to fetch.
type Config struct {
	URL string `yaml:"url" mapstructure:"url"`
	// FilterByDate keeps only records whose DateField equals the run's
	// logical date.
	FilterByDate bool   `yaml:"filter_by_date" mapstructure:"filter_by_date"`
	DateField    string `yaml:"date_field" mapstructure:"date_field"`
}

// ApplyDefaults fills the source URL and date field.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.DateField == "" {
		c.DateField = "txn_date"
	}
}

// Validate checks the URL is absolute.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("fetcher url must be absolute: %q", c.URL)
	}
	return nil
}

// Fetcher performs a single GET per call. Retrying is left to the caller.
type Fetcher struct {
	client  *httpclient.Client
	handoff handoff.Store[record.Batch]
	cfg     Config
	log     *logger.Logger
	now     func() time.Time
}

// New creates a Fetcher writing batches to store.
func New(client *httpclient.Client, store handoff.Store[record.Batch], cfg Config, log *logger.Logger) *Fetcher {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Fetcher{
		client:  client,
		handoff: store,
		cfg:     cfg,
		log:     log.WithComponent("fetcher"),
		now:     time.Now,
	}
}

// Fetch downloads and parses the dataset, then puts the batch into the
// handoff store under runID. That put is the only side effect.
func (f *Fetcher) Fetch(ctx context.Context, runID, logicalDate string) (record.Batch, error) {
	start := f.now()
	resp, err := f.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: f.cfg.URL})
	if err != nil {
		if status := httpclient.StatusOf(err); status > 0 {
			return record.Batch{}, apperrors.FetchBadStatus(f.cfg.URL, status).WithCause(err)
		}
		return record.Batch{}, apperrors.FetchNetwork(f.cfg.URL, err)
	}

	records, err := Parse(resp.Body)
	if err != nil {
		return record.Batch{}, apperrors.FetchMalformedBody(f.cfg.URL, err)
	}
	fetched := len(records)
	if f.cfg.FilterByDate {
		records = FilterDate(records, f.cfg.DateField, logicalDate)
	}

	batch := record.Batch{
		RunID:       runID,
		LogicalDate: logicalDate,
		Source:      f.cfg.URL,
		FetchedAt:   f.now().UTC(),
		Records:     records,
	}
	if err := f.handoff.Put(ctx, runID, batch); err != nil {
		if !errors.Is(err, handoff.ErrAlreadyWritten) {
			return record.Batch{}, apperrors.Internal(fmt.Errorf("hand off batch: %w", err))
		}
		// An earlier attempt of this run already delivered a batch.
		f.log.Warn("batch already handed off", logger.Fields(logger.FieldRunID, runID))
	}

	f.log.Info("fetched case timeline", logger.Fields(
		logger.FieldRunID, runID,
		logger.FieldLogicalDate, logicalDate,
		"fetched", fetched,
		"kept", len(records),
		logger.FieldDuration, f.now().Sub(start).Milliseconds(),
	))
	return batch, nil
}

// Parse decodes a JSON array of objects into one record per element, or a
// single JSON object into one record. Anything else is malformed.
func Parse(body []byte) ([]record.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after JSON value")
	}

	switch t := v.(type) {
	case []any:
		out := make([]record.Record, 0, len(t))
		for i, elem := range t {
			obj, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not an object", i, elem)
			}
			out = append(out, record.Record(obj))
		}
		return out, nil
	case map[string]any:
		return []record.Record{record.Record(t)}, nil
	default:
		return nil, fmt.Errorf("body is %T, not an array or object", v)
	}
}

// FilterDate keeps records whose field holds the given date. Timestamps
// sharing the date prefix match too.
func FilterDate(records []record.Record, field, date string) []record.Record {
	out := records[:0:0]
	for _, r := range records {
		s, ok := r[field].(string)
		if ok && strings.HasPrefix(s, date) {
			out = append(out, r)
		}
	}
	return out
}
