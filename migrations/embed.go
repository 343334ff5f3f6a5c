// Package migrations embeds the SQL migration files for the engine
// database. Entity tables are not defined here; they are derived from the
// schema registry at startup.
package migrations

import "embed"

// FS contains the goose migration files.
//
//go:embed *.sql
var FS embed.FS
