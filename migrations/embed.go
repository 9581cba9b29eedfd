// Package migrations ships the ledger schema so binaries can migrate without
// a checkout of the SQL files.
package migrations

import "embed"

// FS holds every numbered up/down migration
//
//go:embed *.sql
var FS embed.FS
