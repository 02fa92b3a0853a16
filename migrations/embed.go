// Package migrations embeds the SQL schema for the sqlite state backend.
package migrations

import "embed"

// FS holds the migration files, passed to database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
