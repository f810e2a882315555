// Package fingerprint derives a stable, non-identifying device hash from
// HTTP request metadata.
//
// The fingerprint combines the User-Agent, Accept-Language and the
// client's network class (not the literal IP, to survive NAT and proxy
// rotation) into a SHA-256 based hex string. It is intended as an
// advisory device-binding signal for sessions and persistent-login
// tokens: mismatches are worth logging and may optionally be enforced,
// but the hash alone never authenticates anyone.
package fingerprint
