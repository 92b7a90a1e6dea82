// Package migrations embeds the Postgres schema files for use at runtime.
// Migrations are embedded so they work regardless of working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory (e.g. 001_initial.sql).
//
//go:embed *.sql
var FS embed.FS
