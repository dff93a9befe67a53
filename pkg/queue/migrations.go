package queue

import "embed"

// Migrations holds the goose migrations for PostgresStorage. Apply them with
// their own version table, apart from other migration sets.
//
//go:embed migrations/*.sql
var Migrations embed.FS
