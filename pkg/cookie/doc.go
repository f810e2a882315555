// Package cookie manages HTTP cookies with optional HMAC signing and
// AES-256-GCM encryption.
//
// A Manager is configured once with one or more secrets. The first
// secret writes new cookies; all secrets are tried when reading, so keys
// can be rotated without invalidating live sessions. Signed cookies are
// client-readable but tamper-evident; encrypted cookies are opaque to
// the client and are the right choice for session identifiers and other
// bearer material.
//
// Default attributes (Path=/, HttpOnly, SameSite=Lax) can be overridden
// per manager or per call through functional options.
package cookie
