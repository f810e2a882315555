// Package sessionkit is a toolkit for managing web sessions and
// persistent "remember me" logins across a two-tier storage layout.
//
// The packages under pkg/ compose but do not depend on each other being
// used together:
//
//   - pkg/session: the core manager with tiered Redis/Postgres storage,
//     remember-me tokens, revocation and outage reconciliation, plus the
//     cookie binder and HTTP middleware.
//   - pkg/bearer: short-lived JWT access tokens bridging sessions to
//     cookie-less API clients.
//   - pkg/cookie: signed and encrypted cookies with key rotation.
//   - pkg/fingerprint: stable client fingerprints for soft device
//     binding.
//   - pkg/clientip: client IP extraction behind proxies.
//   - pkg/redis, pkg/pg: connection helpers with retries, healthchecks
//     and embedded migrations.
//   - pkg/httpserver, pkg/logger, pkg/config: service plumbing.
//
// See examples/http-minimal for an end-to-end login flow.
package sessionkit
