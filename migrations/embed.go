// Package migrations embeds the SQL schema of the local store, applied in file-name order.
package migrations

import "embed"

// Files holds every .sql file of this directory (order matters: 001, 002, ...).
//
//go:embed *.sql
var Files embed.FS
