// Package pg bootstraps the pgx connection pool used as the durable
// fallback credential store tier.
//
// Connect retries with a growing backoff and verifies the connection
// with a real ping. Migrate applies embedded goose SQL migrations
// through a database/sql bridge over the same pool, and Healthcheck
// exposes the pool to standard readiness probes.
package pg
