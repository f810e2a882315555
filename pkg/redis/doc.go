// Package redis bootstraps the go-redis client used as the primary
// (fast, volatile) credential store tier.
//
// Connect retries with a configurable interval so services starting
// alongside Redis in the same deployment don't crash-loop, and
// Healthcheck plugs the connection into standard readiness probes.
// Configuration comes from environment variables via the Config struct.
package redis
