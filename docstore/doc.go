// Package docstore is the document store the loader writes case records to
// and the store-health sensor checks.
//
// Documents are opaque JSON objects grouped by collection. Each document also
// carries a partition label; the loader uses the run's logical date so a
// repeated load replaces the day's documents instead of adding to them.
//
// Two backends implement Store: Memory for tests and single-process runs, and
// SQL, which keeps documents as JSON text in a GORM-managed table.
package docstore
