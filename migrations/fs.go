// Package migrations embeds SQL migrations for the Postgres dedup store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
