// Package migrations embeds the SQL migrations of the relational backend.
package migrations

import "embed"

// FS holds the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
