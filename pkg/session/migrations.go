package session

import "embed"

// MigrationsFS holds the goose SQL migrations for the fallback store.
// Apply with pg.Migrate(ctx, pool, session.MigrationsFS, "migrations", cfg, log).
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
