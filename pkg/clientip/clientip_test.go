package clientip_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/sessionkit/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	t.Run("cloudflare header wins", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("CF-Connecting-IP", "203.0.113.5")
		r.Header.Set("X-Forwarded-For", "198.51.100.1")
		assert.Equal(t, "203.0.113.5", clientip.GetIP(r))
	})

	t.Run("first valid forwarded entry", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Forwarded-For", "not-an-ip, 198.51.100.1, 10.0.0.1")
		assert.Equal(t, "198.51.100.1", clientip.GetIP(r))
	})

	t.Run("x-real-ip fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Real-IP", "198.51.100.7")
		assert.Equal(t, "198.51.100.7", clientip.GetIP(r))
	})

	t.Run("remote addr fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.10:54321"
		assert.Equal(t, "192.0.2.10", clientip.GetIP(r))
	})

	t.Run("spoofed header is ignored", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.10:54321"
		r.Header.Set("CF-Connecting-IP", "<script>alert(1)</script>")
		assert.Equal(t, "192.0.2.10", clientip.GetIP(r))
	})
}

func TestNetworkClass(t *testing.T) {
	t.Parallel()

	t.Run("ipv4 collapses to /24", func(t *testing.T) {
		assert.Equal(t, "198.51.100.0/24", clientip.NetworkClass("198.51.100.42"))
		assert.Equal(t, clientip.NetworkClass("198.51.100.1"), clientip.NetworkClass("198.51.100.200"))
	})

	t.Run("ipv6 collapses to /48", func(t *testing.T) {
		assert.Equal(t, "2001:db8:1::/48", clientip.NetworkClass("2001:db8:1:2::3"))
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.Empty(t, clientip.NetworkClass("nope"))
		assert.Empty(t, clientip.NetworkClass(""))
	})
}
