package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/cookie"
	"github.com/dmitrymomot/sessionkit/pkg/session"
)

const testCookieSecret = "0123456789abcdef0123456789abcdef"

func newTestBinder(t *testing.T) *session.CookieBinder {
	t.Helper()

	cookies, err := cookie.New([]string{testCookieSecret})
	require.NoError(t, err)

	return session.NewCookieBinder(cookies, session.DefaultConfig())
}

func cookieByName(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestCookieBinderBind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("remember me sets all three cookies", func(t *testing.T) {
		t.Parallel()
		binder := newTestBinder(t)
		mgr, _, _ := newTestManager(t)

		creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("ua"), true)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		require.NoError(t, binder.Bind(rec, creds))

		sid := cookieByName(t, rec, "sid")
		require.NotNil(t, sid)
		assert.True(t, sid.HttpOnly)
		assert.NotEqual(t, creds.SessionID, sid.Value, "session id must not travel in cleartext")
		assert.Equal(t, creds.MaxAge, sid.MaxAge)

		remember := cookieByName(t, rec, "remember_token")
		require.NotNil(t, remember)
		assert.True(t, remember.HttpOnly)
		assert.NotEqual(t, creds.RememberToken, remember.Value)
		assert.Positive(t, remember.MaxAge)

		flag := cookieByName(t, rec, "remember_me")
		require.NotNil(t, flag)
		assert.False(t, flag.HttpOnly, "flag cookie is meant for client scripts")
		assert.Equal(t, "1", flag.Value)

		// Roundtrip through a request.
		r := requestWithCookies(rec)
		assert.Equal(t, creds.SessionID, binder.SessionID(r))
		assert.Equal(t, creds.RememberToken, binder.RememberToken(r))
	})

	t.Run("plain login sets only the session cookie", func(t *testing.T) {
		t.Parallel()
		binder := newTestBinder(t)
		mgr, _, _ := newTestManager(t)

		creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("ua"), false)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		require.NoError(t, binder.Bind(rec, creds))

		sid := cookieByName(t, rec, "sid")
		require.NotNil(t, sid)
		assert.Equal(t, creds.MaxAge, sid.MaxAge, "cookie lifetime tracks the record expiry")
		assert.Positive(t, sid.MaxAge)

		assert.Nil(t, cookieByName(t, rec, "remember_token"))
		assert.Nil(t, cookieByName(t, rec, "remember_me"))
	})

	t.Run("absent or tampered cookies read as empty", func(t *testing.T) {
		t.Parallel()
		binder := newTestBinder(t)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Empty(t, binder.SessionID(r))
		assert.Empty(t, binder.RememberToken(r))

		r.AddCookie(&http.Cookie{Name: "sid", Value: "not-a-ciphertext"})
		assert.Empty(t, binder.SessionID(r))
	})
}

func TestCookieBinderClear(t *testing.T) {
	t.Parallel()

	binder := newTestBinder(t)

	rec := httptest.NewRecorder()
	binder.Clear(rec)

	for _, name := range []string{"sid", "remember_token", "remember_me"} {
		c := cookieByName(t, rec, name)
		require.NotNil(t, c, name)
		assert.Equal(t, -1, c.MaxAge, name)
		assert.Empty(t, c.Value, name)
	}
}
