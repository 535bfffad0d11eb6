// Package database wraps GORM over SQLite for the run-metadata store and the
// SQL document store.
//
//	db, err := database.NewWithContext(ctx, database.Config{DSN: "caseflow.db"}, log)
//	err = db.WithTransaction(ctx, func(tx *gorm.DB) error { ... })
//
// Opening retries with backoff; Component plugs the connection into the
// lifecycle registry and runs auto-migration for registered models.
package database
