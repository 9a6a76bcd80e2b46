// Package migrations embeds the engine schema so the binary and tests apply
// the same files regardless of working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
