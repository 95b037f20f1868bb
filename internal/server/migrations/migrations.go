// Package migrations embeds the versioned SQL schema applied by goose at
// startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
