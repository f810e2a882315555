package session

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/cookie"
)

// CookieBinder translates credentials to and from HTTP cookies. The
// session and remember-me cookies are encrypted and HttpOnly; a third
// plain cookie carries only the remember-me flag so client scripts can
// adjust UI ("keep me signed in" indicators) without ever seeing a
// credential.
type CookieBinder struct {
	cookies *cookie.Manager
	config  Config
}

// NewCookieBinder wraps a cookie manager with the session cookie policy
// from cfg.
func NewCookieBinder(cookies *cookie.Manager, cfg Config) *CookieBinder {
	return &CookieBinder{cookies: cookies, config: cfg}
}

// Bind writes the credential cookies for a login or remember-me
// refresh. The session cookie's Max-Age always mirrors the record's
// expiry. Without remember-me the remember cookies are left untouched
// so an existing token on the device keeps working.
func (b *CookieBinder) Bind(w http.ResponseWriter, creds *Credentials) error {
	if err := b.cookies.SetEncrypted(w, b.config.CookieName, creds.SessionID,
		cookie.WithHTTPOnly(true),
		cookie.WithSecure(b.config.SecureCookies),
		cookie.WithSameSite(http.SameSiteLaxMode),
		cookie.WithMaxAge(creds.MaxAge),
	); err != nil {
		return err
	}

	if !creds.RememberMe {
		return nil
	}

	rememberMaxAge := int(time.Until(creds.RememberExpiresAt).Seconds())
	if err := b.cookies.SetEncrypted(w, b.config.RememberCookieName, creds.RememberToken,
		cookie.WithHTTPOnly(true),
		cookie.WithSecure(b.config.SecureCookies),
		cookie.WithSameSite(http.SameSiteLaxMode),
		cookie.WithMaxAge(rememberMaxAge),
	); err != nil {
		return err
	}

	// Flag cookie is deliberately script-readable and carries no secret.
	return b.cookies.Set(w, b.config.RememberFlagCookieName, "1",
		cookie.WithHTTPOnly(false),
		cookie.WithSecure(b.config.SecureCookies),
		cookie.WithSameSite(http.SameSiteLaxMode),
		cookie.WithMaxAge(rememberMaxAge),
	)
}

// SessionID extracts the session identifier from the request, or an
// empty string when the cookie is absent or fails authenticated
// decryption.
func (b *CookieBinder) SessionID(r *http.Request) string {
	id, err := b.cookies.GetEncrypted(r, b.config.CookieName)
	if err != nil {
		return ""
	}
	return id
}

// RememberToken extracts the remember-me token from the request, or an
// empty string when absent or undecryptable.
func (b *CookieBinder) RememberToken(r *http.Request) string {
	token, err := b.cookies.GetEncrypted(r, b.config.RememberCookieName)
	if err != nil {
		return ""
	}
	return token
}

// Clear expires all three cookies on logout.
func (b *CookieBinder) Clear(w http.ResponseWriter) {
	b.cookies.Delete(w, b.config.CookieName)
	b.cookies.Delete(w, b.config.RememberCookieName)
	b.cookies.Delete(w, b.config.RememberFlagCookieName)
}
