// Package migrations embeds the SQL schema applied by cmd/migrate and the integration tests.
package migrations

import "embed"

// FS holds the golang-migrate formatted migration files.
//
//go:embed *.sql
var FS embed.FS
