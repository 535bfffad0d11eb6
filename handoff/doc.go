// Package handoff passes a value from one task to the next within a run.
//
// Each key (a run ID) is written once by its producer and taken once by its
// consumer. A consumer whose own work then fails may Put the value back so a
// retry can take it again without re-running the producer.
//
//	store := handoff.NewMemory[record.Batch]()
//	err := store.Put(ctx, runID, batch)   // fetcher
//	batch, err := store.Take(ctx, runID)  // loader
package handoff
