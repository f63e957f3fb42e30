package db

import "embed"

// SchemaFiles embeds the migration SQL applied by internal/db/migrate.
//
//go:embed schema/*.up.sql
var SchemaFiles embed.FS
