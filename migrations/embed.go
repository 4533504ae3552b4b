// Package migrations holds the SQL schema of the publish history database.
package migrations

import "embed"

// FS contains the *.sql migration files, ready for database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
