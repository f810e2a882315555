package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/session"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Now()} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// flakyPrimary rejects writes to keys under failPrefix, leaving all
// other operations untouched.
type flakyPrimary struct {
	*session.MemoryStore
	failPrefix string
}

func (f *flakyPrimary) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failPrefix != "" && strings.HasPrefix(key, f.failPrefix) {
		return errors.New("write rejected")
	}
	return f.MemoryStore.Put(ctx, key, value, ttl)
}

// gatedDeletePrimary parks the first Delete until release is closed,
// signalling entry on the entered channel.
type gatedDeletePrimary struct {
	*session.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedDeletePrimary) Delete(ctx context.Context, key string) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.MemoryStore.Delete(ctx, key)
}

func newTestManager(t *testing.T, opts ...session.Option) (*session.Manager, *session.MemoryStore, *session.MemoryFallback) {
	t.Helper()

	primary := session.NewMemoryStore()
	fallback := session.NewMemoryFallback()

	base := []session.Option{
		session.WithPrimaryStore(primary),
		session.WithFallbackStore(fallback),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithReconcileInterval(0),
	}
	mgr := session.New(append(base, opts...)...)
	t.Cleanup(func() { _ = mgr.Close() })

	return mgr, primary, fallback
}

func loginRequest(userAgent string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.Header.Set("User-Agent", userAgent)
	return r
}

func TestManagerCreateAndValidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()

	t.Run("plain login", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t)

		creds, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), false)
		require.NoError(t, err)
		assert.NotEmpty(t, creds.SessionID)
		assert.Equal(t, userID, creds.UserID)
		assert.Equal(t, "member", creds.Role)
		assert.Equal(t, session.TierPrimary, creds.Tier)
		assert.False(t, creds.RememberMe)
		assert.Empty(t, creds.RememberToken)
		assert.True(t, creds.RememberExpiresAt.IsZero())

		sess, err := mgr.Validate(ctx, creds.SessionID)
		require.NoError(t, err)
		assert.Equal(t, creds.SessionID, sess.ID)
		assert.Equal(t, userID, sess.UserID)
		assert.Equal(t, "member", sess.Role)
		assert.Equal(t, session.TierPrimary, sess.Tier)
	})

	t.Run("remember me login includes token", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t)

		creds, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), true)
		require.NoError(t, err)
		assert.True(t, creds.RememberMe)
		assert.NotEmpty(t, creds.RememberToken)
		assert.False(t, creds.RememberExpiresAt.IsZero())
		assert.NotEqual(t, creds.SessionID, creds.RememberToken)
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t)

		_, err := mgr.Validate(ctx, "no-such-session")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})
}

func TestManagerValidateExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	mgr, _, _ := newTestManager(t, session.WithClock(clock.Now))

	creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("ua"), false)
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)

	_, err = mgr.Validate(ctx, creds.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestManagerRememberTokenFailureAbortsLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := &flakyPrimary{MemoryStore: session.NewMemoryStore(), failPrefix: "remember:"}
	fallback := session.NewMemoryFallback()
	fallback.FailWrites(true)

	mgr := session.New(
		session.WithPrimaryStore(primary),
		session.WithFallbackStore(fallback),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithReconcileInterval(0),
	)
	t.Cleanup(func() { _ = mgr.Close() })

	userID := uuid.New()
	creds, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), true)
	require.ErrorIs(t, err, session.ErrRememberTokenFailed)
	assert.Nil(t, creds)

	// The session written before the token failure must not survive.
	fallback.FailWrites(false)
	revoked, err := mgr.RevokeAllForUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, revoked)
}

func TestManagerRefresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	mgr, _, _ := newTestManager(t, session.WithClock(clock.Now))

	creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("ua"), false)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	sess, err := mgr.Refresh(ctx, creds.SessionID)
	require.NoError(t, err)
	assert.Equal(t, creds.SessionID, sess.ID, "refresh keeps the identifier")
	assert.True(t, sess.ExpiresAt.After(creds.ExpiresAt), "expiry must slide forward")

	refetched, err := mgr.Validate(ctx, creds.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sess.ExpiresAt.Unix(), refetched.ExpiresAt.Unix())
}

func TestManagerRefreshFromRememberToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()

	t.Run("mints a fresh session", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t)

		creds, err := mgr.Create(ctx, userID, "admin", loginRequest("ua"), true)
		require.NoError(t, err)

		fresh, err := mgr.RefreshFromRememberToken(ctx, creds.RememberToken, loginRequest("ua"))
		require.NoError(t, err)
		assert.NotEqual(t, creds.SessionID, fresh.SessionID)
		assert.Equal(t, userID, fresh.UserID)
		assert.Equal(t, "admin", fresh.Role)
		assert.True(t, fresh.RememberMe)

		// Without rotation the token stays valid for reuse.
		assert.Equal(t, creds.RememberToken, fresh.RememberToken)
		again, err := mgr.RefreshFromRememberToken(ctx, creds.RememberToken, loginRequest("ua"))
		require.NoError(t, err)
		assert.NotEqual(t, fresh.SessionID, again.SessionID)
	})

	t.Run("rotation replaces the token", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t, session.WithRememberTokenRotation(true))

		creds, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), true)
		require.NoError(t, err)

		fresh, err := mgr.RefreshFromRememberToken(ctx, creds.RememberToken, loginRequest("ua"))
		require.NoError(t, err)
		require.NotEmpty(t, fresh.RememberToken)
		assert.NotEqual(t, creds.RememberToken, fresh.RememberToken)

		_, err = mgr.RefreshFromRememberToken(ctx, creds.RememberToken, loginRequest("ua"))
		assert.ErrorIs(t, err, session.ErrNotFound, "rotated-out token must be dead")

		_, err = mgr.RefreshFromRememberToken(ctx, fresh.RememberToken, loginRequest("ua"))
		assert.NoError(t, err)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t)

		_, err := mgr.RefreshFromRememberToken(ctx, "bogus", loginRequest("ua"))
		assert.ErrorIs(t, err, session.ErrNotFound)
	})
}

func TestManagerFingerprintCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	byUserAgent := func(r *http.Request) string { return r.Header.Get("User-Agent") }

	t.Run("strict mismatch rejected", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t,
			session.WithFingerprint(byUserAgent),
			session.WithStrictFingerprint(true),
		)

		creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("device-a"), true)
		require.NoError(t, err)

		_, err = mgr.RefreshFromRememberToken(ctx, creds.RememberToken, loginRequest("device-b"))
		assert.ErrorIs(t, err, session.ErrNotFound)

		_, err = mgr.RefreshFromRememberToken(ctx, creds.RememberToken, loginRequest("device-a"))
		assert.NoError(t, err)
	})

	t.Run("advisory mismatch allowed", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t, session.WithFingerprint(byUserAgent))

		creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("device-a"), true)
		require.NoError(t, err)

		_, err = mgr.RefreshFromRememberToken(ctx, creds.RememberToken, loginRequest("device-b"))
		assert.NoError(t, err)
	})
}

func TestManagerRevoke(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("revoked session is gone", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t)

		creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("ua"), false)
		require.NoError(t, err)

		require.NoError(t, mgr.Revoke(ctx, creds.SessionID))

		_, err = mgr.Validate(ctx, creds.SessionID)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("revoke survives primary outage and recovery", func(t *testing.T) {
		t.Parallel()
		mgr, primary, _ := newTestManager(t)

		creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("ua"), false)
		require.NoError(t, err)

		primary.SetAvailable(false)
		require.NoError(t, mgr.Revoke(ctx, creds.SessionID))

		_, err = mgr.Validate(ctx, creds.SessionID)
		assert.ErrorIs(t, err, session.ErrNotFound, "tombstone must win during the outage")

		primary.SetAvailable(true)
		require.True(t, mgr.Reconcile(ctx))

		_, err = mgr.Validate(ctx, creds.SessionID)
		assert.ErrorIs(t, err, session.ErrNotFound, "stale primary copy must not resurrect the session")
	})

	t.Run("session tombstone expiry is bounded by session lifetime", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		mgr, primary, fallback := newTestManager(t, session.WithClock(clock.Now))

		creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("ua"), false)
		require.NoError(t, err)

		primary.SetAvailable(false)
		require.NoError(t, mgr.Revoke(ctx, creds.SessionID))

		recs, err := fallback.ListInactive(ctx)
		require.NoError(t, err)
		require.Len(t, recs, 1)

		cfg := session.DefaultConfig()
		assert.WithinDuration(t, clock.Now().Add(cfg.RememberSessionTTL), recs[0].ExpiresAt, time.Second)
		assert.True(t, recs[0].ExpiresAt.Before(clock.Now().Add(cfg.RememberTokenTTL)),
			"a session tombstone must not linger as long as a remember token")
	})

	t.Run("revoke remember token", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t)

		creds, err := mgr.Create(ctx, uuid.New(), "member", loginRequest("ua"), true)
		require.NoError(t, err)

		require.NoError(t, mgr.RevokeRememberToken(ctx, creds.RememberToken))

		_, err = mgr.RefreshFromRememberToken(ctx, creds.RememberToken, loginRequest("ua"))
		assert.ErrorIs(t, err, session.ErrNotFound)
	})
}

func TestManagerRevokeAllForUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("enumerates sessions and tokens", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t)
		userID := uuid.New()
		otherID := uuid.New()

		first, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), false)
		require.NoError(t, err)
		second, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), true)
		require.NoError(t, err)
		other, err := mgr.Create(ctx, otherID, "member", loginRequest("ua"), false)
		require.NoError(t, err)

		revoked, err := mgr.RevokeAllForUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, revoked, 3)
		assert.Contains(t, revoked, first.SessionID)
		assert.Contains(t, revoked, second.SessionID)
		assert.Contains(t, revoked, second.RememberToken)

		_, err = mgr.Validate(ctx, first.SessionID)
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = mgr.RefreshFromRememberToken(ctx, second.RememberToken, loginRequest("ua"))
		assert.ErrorIs(t, err, session.ErrNotFound)

		_, err = mgr.Validate(ctx, other.SessionID)
		assert.NoError(t, err, "other users must be untouched")
	})

	t.Run("concurrent creates are all enumerated", func(t *testing.T) {
		t.Parallel()
		mgr, _, _ := newTestManager(t)
		userID := uuid.New()

		const logins = 16
		var wg sync.WaitGroup
		ids := make([]string, logins)
		errs := make([]error, logins)
		for i := range logins {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				creds, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), false)
				if err != nil {
					errs[i] = err
					return
				}
				ids[i] = creds.SessionID
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		revoked, err := mgr.RevokeAllForUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, revoked, logins)
		for _, id := range ids {
			assert.Contains(t, revoked, id)
		}
	})

	t.Run("login proceeds while revocation deletes are in flight", func(t *testing.T) {
		t.Parallel()
		primary := &gatedDeletePrimary{
			MemoryStore: session.NewMemoryStore(),
			entered:     make(chan struct{}),
			release:     make(chan struct{}),
		}
		fallback := session.NewMemoryFallback()
		mgr := session.New(
			session.WithPrimaryStore(primary),
			session.WithFallbackStore(fallback),
			session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			session.WithReconcileInterval(0),
		)
		t.Cleanup(func() { _ = mgr.Close() })

		userID := uuid.New()
		_, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), false)
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = mgr.RevokeAllForUser(ctx, userID)
		}()
		<-primary.entered

		// The revocation is parked inside a store delete. That delete runs
		// outside the per-user index lock, so a concurrent login for the
		// same user must not wait behind it.
		created := make(chan error, 1)
		go func() {
			_, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), false)
			created <- err
		}()

		select {
		case err := <-created:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("login blocked behind an in-flight revocation delete")
		}

		close(primary.release)
		<-done
	})

	t.Run("covers fallback rows during outage", func(t *testing.T) {
		t.Parallel()
		mgr, primary, _ := newTestManager(t)
		userID := uuid.New()

		primary.SetAvailable(false)
		creds, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), false)
		require.NoError(t, err)
		require.Equal(t, session.TierFallback, creds.Tier)

		revoked, err := mgr.RevokeAllForUser(ctx, userID)
		require.NoError(t, err)
		assert.Contains(t, revoked, creds.SessionID)

		_, err = mgr.Validate(ctx, creds.SessionID)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})
}

func TestManagerPrimaryOutage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()

	mgr, primary, _ := newTestManager(t)

	healthy, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), false)
	require.NoError(t, err)
	require.Equal(t, session.TierPrimary, healthy.Tier)

	primary.SetAvailable(false)

	degraded, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), false)
	require.NoError(t, err, "logins must keep working through an outage")
	assert.Equal(t, session.TierFallback, degraded.Tier)

	sess, err := mgr.Validate(ctx, degraded.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.TierFallback, sess.Tier)

	assert.False(t, mgr.Reconcile(ctx), "probe must fail while the tier is down")

	primary.SetAvailable(true)
	require.True(t, mgr.Reconcile(ctx))

	// Both the outage-era session and new primary writes keep working.
	_, err = mgr.Validate(ctx, degraded.SessionID)
	assert.NoError(t, err)

	recovered, err := mgr.Create(ctx, userID, "member", loginRequest("ua"), false)
	require.NoError(t, err)
	assert.Equal(t, session.TierPrimary, recovered.Tier)
}

func TestManagerClosed(t *testing.T) {
	t.Parallel()

	mgr, _, _ := newTestManager(t)
	require.NoError(t, mgr.Close())
	require.NoError(t, mgr.Close(), "close is idempotent")

	_, err := mgr.Create(context.Background(), uuid.New(), "member", loginRequest("ua"), false)
	assert.ErrorIs(t, err, session.ErrManagerClosed)

	_, err = mgr.RefreshFromRememberToken(context.Background(), "token", loginRequest("ua"))
	assert.ErrorIs(t, err, session.ErrManagerClosed)
}
