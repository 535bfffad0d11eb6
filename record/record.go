// Package record defines the case data passed from the fetcher to the loader.
package record

import "time"

// Record is one case-timeline entry, kept exactly as the source sent it.
type Record map[string]any

// Batch is everything one run fetched.
type Batch struct {
	RunID       string    `json:"run_id"`
	LogicalDate string    `json:"logical_date"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
	Records     []Record  `json:"records"`
}

// Len returns the number of records.
func (b *Batch) Len() int { return len(b.Records) }
