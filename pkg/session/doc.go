// Package session manages server-side sessions and remember-me tokens
// across a two-tier storage layout: a fast volatile primary store
// (Redis) backed by a durable fallback store (Postgres).
//
// Writes go to exactly one tier: the primary when it is reachable, the
// fallback otherwise. Reads consult the primary first and fall back on
// outage or miss. Revocations are durable: when the primary tier is
// down they are recorded as inactive fallback rows, and a background
// reconciler replays them against the primary store once it recovers,
// so a revoked credential can never be resurrected by stale cache
// state.
//
// Typical wiring:
//
//	mgr := session.New(
//		session.WithPrimaryStore(session.NewRedisStore(redisClient)),
//		session.WithFallbackStore(session.NewPGStore(pool)),
//		session.WithFingerprint(fingerprint.Generate),
//	)
//	defer mgr.Close()
//
//	creds, err := mgr.Create(ctx, userID, "member", r, rememberMe)
//
// CookieBinder translates Credentials to and from HTTP cookies, and
// Middleware wires validation plus transparent remember-me refresh into
// an http.Handler chain.
package session
