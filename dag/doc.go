// Package dag executes a task graph for one run.
//
// A Graph holds named Nodes, dependency Edges and a retry Policy per node.
// Engine.Execute walks the graph: a node starts once every upstream node has
// succeeded, independent nodes run concurrently (bounded by MaxParallel),
// failed attempts are retried with exponential backoff while the error is
// retryable, and every downstream node of a failed one is skipped. Execute
// never returns an error; the outcome is a Report.
//
// Per-task states:
//
//	pending -> running -> succeeded
//	                   -> retrying -> running
//	                   -> failed
//	pending -> skipped
//
// Node decorators WithLogging, WithTracing and WithMetrics wrap any Node.
package dag
