// Package resilience holds the retry and concurrency-limiting primitives the
// task executor builds on.
//
//   - Retry: re-runs an attempt with exponential backoff while RetryIf allows it
//   - Bulkhead: bounds how many tasks of one run execute at once
package resilience
