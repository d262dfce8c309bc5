// Package migrations embeds the versioned PostgreSQL schema so the server and
// the migrate CLI can apply it without shipping the SQL files separately.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql pair in this directory.
//
//go:embed *.sql
var FS embed.FS
