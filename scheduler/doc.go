// Package scheduler triggers one workflow run per schedule interval.
//
// Each run represents a logical date: the start of the interval that just
// closed, so the @daily fire at midnight of the 28th runs the 27th. At most
// MaxActiveRuns runs execute at once and each logical date is triggered once.
// Intervals that closed while the process was down are never run.
package scheduler
