// Package bearer issues and verifies signed, time-bounded identity
// assertions (JWTs) independent of session storage.
//
// A token carries the user, role and owning session identifier together
// with fixed issuer/audience claims. Integrity is verifiable without a
// store lookup; the embedded session identifier is cross-checked against
// the session manager by the caller to enforce revocation.
//
// Verification fails closed and reports each failure kind distinctly
// (malformed, expired, bad signature, issuer or audience mismatch,
// lifetime mismatch), because "expired, please refresh" and "tampered,
// terminate session" demand different caller reactions.
package bearer
