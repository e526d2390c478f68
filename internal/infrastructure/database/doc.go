// Package database provides the SQLite storage layer for Foyer Core.
//
// One database file holds the device registry, the lost-property and
// maintenance reports, and the audit trail. The file is opened once at
// startup, migrated to the current schema, and shared by all repositories.
//
// WAL mode keeps token resolution reads from blocking on report writes,
// and a single-connection pool serialises writers the way SQLite wants.
// The file is chmodded 0600 because it stores device public keys and
// token hashes.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Schema changes ship as paired .up.sql/.down.sql files embedded by the
// migrations package. Production migrations are forward-only; MigrateDown
// exists for development and tests.
package database
