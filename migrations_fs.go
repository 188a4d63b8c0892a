package webhookengine

import (
	"embed"
	"io/fs"
)

// migrationsFS contains the engine's SQL migration tree, including dialect
// alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS returns the schema migration tree for the engine's
// ledger and retry tables.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
