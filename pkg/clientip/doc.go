// Package clientip extracts the real client IP address from HTTP requests
// that may have passed through proxies or load balancers.
//
// Headers are checked in trust order (Cloudflare, X-Forwarded-For,
// X-Real-IP) before falling back to the raw connection address. Every
// candidate value is validated as an IP address before being returned, so
// spoofed garbage in a header never propagates into logs or derived
// identifiers.
//
// NetworkClass maps an address to its surrounding network prefix (/24 for
// IPv4, /48 for IPv6) for use cases that must tolerate NAT and proxy
// rotation, such as device fingerprinting.
package clientip
