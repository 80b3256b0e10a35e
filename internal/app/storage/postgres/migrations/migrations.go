// Package migrations embeds the goose SQL migrations for the storefront
// schema.
package migrations

import "embed"

// Migrations holds the embedded SQL migration files.
//
//go:embed *.sql
var Migrations embed.FS
