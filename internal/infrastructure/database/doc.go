// Package database provides SQLite connectivity for the ViCare bridge.
//
// The database stores the entity registry: one row per materialised
// entity with its last known state. It is opened in WAL mode so the REST
// API can read while the poll loop writes.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are forward-only *.up.sql files embedded by the top-level
// migrations package.
package database
