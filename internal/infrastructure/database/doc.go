// Package database provides the SQLite store behind the publish history.
//
// It manages:
//   - the connection, with WAL mode for concurrent reads during writes
//   - schema migrations read from any fs.FS (normally the embedded migrations package)
//   - a single-writer connection pool suited to SQLite
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql. The database file is created with 0600 permissions.
package database
