package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/dmitrymomot/sessionkit/pkg/clientip"
)

// Generate derives a stable device fingerprint from request metadata.
// It hashes the User-Agent, Accept-Language and the client's network
// class (/24 for IPv4, /48 for IPv6) rather than the literal address, so
// the fingerprint survives NAT and rotating proxy exits while still
// separating materially different devices.
//
// The result is a 32-character hex string. The same device produces the
// same value for the lifetime of a session; it is an advisory signal,
// not an authorization gate.
func Generate(r *http.Request) string {
	components := []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		clientip.NetworkClass(clientip.GetIP(r)),
	}

	var present []string
	for _, c := range components {
		if c != "" {
			present = append(present, c)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(present, "|")))
	return hex.EncodeToString(sum[:16])
}

// Match reports whether the current request produces the stored
// fingerprint. An empty stored fingerprint matches anything, since the
// record was created before fingerprinting was enabled.
func Match(r *http.Request, stored string) bool {
	if stored == "" {
		return true
	}
	return Generate(r) == stored
}
