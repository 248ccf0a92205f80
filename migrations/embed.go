// Package migrations embeds the versioned SQL schema applied with golang-migrate.
package migrations

import "embed"

// FS holds the NNNN_name.up.sql / NNNN_name.down.sql pairs.
//
//go:embed *.sql
var FS embed.FS
