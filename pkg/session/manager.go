package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

const (
	sessionKeyPrefix   = "session:"
	rememberKeyPrefix  = "remember:"
	userSessionsPrefix = "user:sessions:"
	userRememberPrefix = "user:remember:"
)

func sessionKey(id string) string           { return sessionKeyPrefix + id }
func rememberKey(token string) string       { return rememberKeyPrefix + token }
func userSessionsKey(uid uuid.UUID) string  { return userSessionsPrefix + uid.String() }
func userRememberKey(uid uuid.UUID) string  { return userRememberPrefix + uid.String() }

// Manager owns the lifecycle of sessions and remember-me tokens across
// two storage tiers: writes go to the primary store when it is
// reachable and to the fallback store otherwise, never to both, so the
// tiers cannot diverge on the same write. Every result carries the tier
// that served it.
//
// A Manager is safe for arbitrary concurrent use. Per-user index
// mutations are serialized by an in-process keyed lock scoped to the
// index operation only.
type Manager struct {
	primary         PrimaryStore
	fallback        FallbackStore
	config          Config
	log             *slog.Logger
	fingerprintFunc FingerprintFunc
	now             func() time.Time

	userLocks *keyedMutex
	primaryUp atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup

	// pendingRevokeAll remembers users whose primary-tier credentials
	// could not be enumerated during an outage; the reconciler replays
	// them once the tier recovers.
	pendingMu        sync.Mutex
	pendingRevokeAll map[uuid.UUID]struct{}
}

// New creates a session manager. Without explicit stores it runs on the
// in-memory adapters, which is only suitable for tests and local
// development.
func New(opts ...Option) *Manager {
	m := &Manager{
		config:           DefaultConfig(),
		log:              slog.Default(),
		now:              time.Now,
		userLocks:        newKeyedMutex(),
		done:             make(chan struct{}),
		pendingRevokeAll: make(map[uuid.UUID]struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.primary == nil {
		m.primary = NewMemoryStore()
	}
	if m.fallback == nil {
		m.fallback = NewMemoryFallback()
	}

	m.primaryUp.Store(true)

	if m.config.ReconcileInterval > 0 {
		m.wg.Add(1)
		go m.runReconciler()
	}
	if m.config.SweepInterval > 0 {
		m.wg.Add(1)
		go m.runSweeper()
	}

	return m
}

// Create issues a new session for an authenticated user and, when
// rememberMe is set, a companion remember-me token. If the token cannot
// be persisted in either tier the session is rolled back and the whole
// call fails with ErrRememberTokenFailed: a login that asked for
// persistence is never silently downgraded.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID, role string, r *http.Request, rememberMe bool) (*Credentials, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	var fp string
	if m.fingerprintFunc != nil && r != nil {
		fp = m.fingerprintFunc(r)
	}

	sess, err := m.createSession(ctx, userID, role, fp, rememberMe)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{
		SessionID:  sess.ID,
		UserID:     userID,
		Role:       role,
		ExpiresAt:  sess.ExpiresAt,
		MaxAge:     int(m.config.sessionTTL(rememberMe).Seconds()),
		RememberMe: rememberMe,
		Tier:       sess.Tier,
	}

	if rememberMe {
		token, err := m.createRememberToken(ctx, userID, role, fp)
		if err != nil {
			// Contract: no session without its requested companion.
			if rbErr := m.revokeByKey(ctx, sessionKey(sess.ID), KindSession, sess.ID); rbErr != nil {
				m.log.ErrorContext(ctx, "failed to roll back session after remember token failure",
					logger.SessionID(sess.ID), logger.Error(rbErr))
			}
			return nil, errors.Join(ErrRememberTokenFailed, err)
		}
		creds.RememberToken = token.Token
		creds.RememberExpiresAt = token.ExpiresAt
	}

	m.log.InfoContext(ctx, "session created",
		logger.UserID(userID), logger.SessionID(sess.ID),
		logger.Tier(sess.Tier), slog.Bool("remember_me", rememberMe))

	return creds, nil
}

// Validate resolves a session identifier against the primary tier,
// falling back to the durable tier on outage or miss. Expired and
// revoked credentials report ErrNotFound regardless of tier.
func (m *Manager) Validate(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := m.lookupSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	m.log.DebugContext(ctx, "session validated",
		logger.UserID(sess.UserID), logger.SessionID(sess.ID), logger.Tier(sess.Tier))

	return sess, nil
}

// Refresh extends a live session's expiry in place (same identifier,
// new deadline), updating whichever tier holds the record.
func (m *Manager) Refresh(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := m.lookupSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ttl := m.config.sessionTTL(sess.RememberMe)
	sess.ExpiresAt = m.now().Add(ttl)

	switch sess.Tier {
	case TierPrimary:
		payload, err := encodeSession(sess)
		if err != nil {
			return nil, err
		}
		if err := m.primary.Put(ctx, sessionKey(sess.ID), payload, ttl); err != nil {
			if !errors.Is(err, ErrStoreUnavailable) {
				return nil, err
			}
			// Tier died mid-refresh; the durable tier takes over.
			m.markPrimaryDown(err)
			if err := m.fallback.Insert(ctx, sessionRecord(sess)); err != nil {
				return nil, errors.Join(ErrFallbackWriteFailed, err)
			}
			sess.Tier = TierFallback
		} else {
			_ = m.indexAdd(ctx, sess.UserID, userSessionsKey(sess.UserID), sess.ID, float64(sess.ExpiresAt.Unix()))
		}
	case TierFallback:
		if err := m.fallback.UpdateExpiry(ctx, sessionKey(sess.ID), sess.ExpiresAt); err != nil {
			return nil, err
		}
	}

	m.log.InfoContext(ctx, "session refreshed",
		logger.UserID(sess.UserID), logger.SessionID(sess.ID), logger.Tier(sess.Tier))

	return sess, nil
}

// RefreshFromRememberToken validates a remember-me token and mints a
// brand-new session for its owner without re-presenting credentials.
// The token stays valid for reuse within its window unless rotation is
// enabled, in which case it is revoked and replaced in the same call.
func (m *Manager) RefreshFromRememberToken(ctx context.Context, token string, r *http.Request) (*Credentials, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	t, err := m.lookupRememberToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if m.fingerprintFunc != nil && r != nil && t.Fingerprint != "" {
		if current := m.fingerprintFunc(r); current != t.Fingerprint {
			m.log.WarnContext(ctx, "remember token fingerprint mismatch",
				logger.UserID(t.UserID), slog.Bool("strict", m.config.StrictFingerprint))
			if m.config.StrictFingerprint {
				return nil, ErrNotFound
			}
		}
	}

	sess, err := m.createSession(ctx, t.UserID, t.Role, t.Fingerprint, true)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{
		SessionID:         sess.ID,
		UserID:            t.UserID,
		Role:              t.Role,
		ExpiresAt:         sess.ExpiresAt,
		MaxAge:            int(m.config.sessionTTL(true).Seconds()),
		RememberMe:        true,
		RememberToken:     t.Token,
		RememberExpiresAt: t.ExpiresAt,
		Tier:              sess.Tier,
	}

	if m.config.RotateRememberTokens {
		fresh, err := m.createRememberToken(ctx, t.UserID, t.Role, t.Fingerprint)
		if err != nil {
			if rbErr := m.revokeByKey(ctx, sessionKey(sess.ID), KindSession, sess.ID); rbErr != nil {
				m.log.ErrorContext(ctx, "failed to roll back session after rotation failure",
					logger.SessionID(sess.ID), logger.Error(rbErr))
			}
			return nil, errors.Join(ErrRememberTokenFailed, err)
		}
		if err := m.revokeByKey(ctx, rememberKey(t.Token), KindRemember, t.Token); err != nil {
			m.log.WarnContext(ctx, "failed to revoke rotated remember token",
				logger.UserID(t.UserID), logger.Error(err))
		}
		creds.RememberToken = fresh.Token
		creds.RememberExpiresAt = fresh.ExpiresAt
	}

	m.log.InfoContext(ctx, "session created from remember token",
		logger.UserID(t.UserID), logger.SessionID(sess.ID), logger.Tier(sess.Tier),
		slog.Bool("rotated", m.config.RotateRememberTokens))

	return creds, nil
}

// Revoke invalidates a single session in whichever tier holds it.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	return m.revokeByKey(ctx, sessionKey(sessionID), KindSession, sessionID)
}

// RevokeRememberToken invalidates a single remember-me token.
func (m *Manager) RevokeRememberToken(ctx context.Context, token string) error {
	return m.revokeByKey(ctx, rememberKey(token), KindRemember, token)
}

// RevokeAllForUser invalidates every session and remember-me token a
// user holds, enumerating the per-user index in the primary tier and
// scanning the fallback table, so neither tier is left with orphaned
// active credentials. It returns the revoked identifiers.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	revoked := make(map[string]struct{})
	minScore := float64(m.now().Unix())
	primaryOK := false

	if m.primaryAvailable() {
		primaryOK = true
		for _, idx := range []struct {
			indexKey string
			prefix   string
		}{
			{userSessionsKey(userID), sessionKeyPrefix},
			{userRememberKey(userID), rememberKeyPrefix},
		} {
			members, err := m.primary.IndexRange(ctx, idx.indexKey, minScore)
			if err != nil {
				if errors.Is(err, ErrStoreUnavailable) {
					m.markPrimaryDown(err)
				}
				primaryOK = false
				break
			}

			for _, member := range members {
				if err := m.primary.Delete(ctx, idx.prefix+member); err == nil {
					revoked[member] = struct{}{}
				} else {
					primaryOK = false
				}
			}

			// Only the index mutation needs the per-user critical section.
			unlock := m.userLocks.lock(userID.String())
			err = m.primary.IndexRemove(ctx, idx.indexKey, members...)
			unlock()
			if err != nil {
				primaryOK = false
			}
		}
	}

	if !primaryOK {
		// Primary-resident credentials could not be enumerated now; the
		// reconciler finishes the job once the tier is back.
		m.pendingMu.Lock()
		m.pendingRevokeAll[userID] = struct{}{}
		m.pendingMu.Unlock()
	}

	recs, fbErr := m.fallback.ListActiveByUser(ctx, userID)
	if fbErr == nil {
		if fbErr = m.fallback.MarkInactiveByUser(ctx, userID); fbErr == nil {
			for _, rec := range recs {
				revoked[memberOf(rec.Key)] = struct{}{}
			}
		}
	}

	if !primaryOK && fbErr != nil {
		return nil, errors.Join(ErrStoreUnavailable, fbErr)
	}

	ids := make([]string, 0, len(revoked))
	for id := range revoked {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	m.log.InfoContext(ctx, "all credentials revoked for user",
		logger.UserID(userID), slog.Int("count", len(ids)))

	return ids, nil
}

// Close begins shutdown: new session creation is rejected, in-flight
// validations complete, and background loops stop. Safe to call twice.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	close(m.done)
	m.wg.Wait()
	return nil
}

// createSession performs the tiered write for a new session.
func (m *Manager) createSession(ctx context.Context, userID uuid.UUID, role, fp string, rememberMe bool) (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	ttl := m.config.sessionTTL(rememberMe)
	sess := &Session{
		ID:          id,
		UserID:      userID,
		Role:        role,
		Fingerprint: fp,
		RememberMe:  rememberMe,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Active:      true,
	}

	payload, err := encodeSession(sess)
	if err != nil {
		return nil, err
	}

	tier, err := m.writeCredential(ctx, sessionKey(id), payload, sessionRecord(sess),
		userSessionsKey(userID), id, ttl, float64(sess.ExpiresAt.Unix()), userID)
	if err != nil {
		return nil, err
	}
	sess.Tier = tier
	return sess, nil
}

// createRememberToken performs the tiered write for a new token.
func (m *Manager) createRememberToken(ctx context.Context, userID uuid.UUID, role, fp string) (*RememberToken, error) {
	raw, err := generateID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	token := &RememberToken{
		Token:       raw,
		UserID:      userID,
		Role:        role,
		Fingerprint: fp,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.config.RememberTokenTTL),
		Active:      true,
	}

	payload, err := encodeRememberToken(token)
	if err != nil {
		return nil, err
	}

	tier, err := m.writeCredential(ctx, rememberKey(raw), payload, rememberRecord(token),
		userRememberKey(userID), raw, m.config.RememberTokenTTL,
		float64(token.ExpiresAt.Unix()), userID)
	if err != nil {
		return nil, err
	}
	token.Tier = tier

	m.log.InfoContext(ctx, "remember token created",
		logger.UserID(userID), logger.Tier(tier))

	return token, nil
}

// writeCredential implements the tiered-write rule: primary when
// reachable, fallback otherwise, never both. The per-user index entry
// rides along with the primary write; if it cannot be added the value
// write is undone and the record lands in the fallback tier instead.
func (m *Manager) writeCredential(ctx context.Context, key string, payload []byte, rec *Record,
	indexKey, member string, ttl time.Duration, score float64, userID uuid.UUID,
) (Tier, error) {
	primaryErr := error(ErrStoreUnavailable)

	if m.primaryAvailable() {
		primaryErr = m.primary.Put(ctx, key, payload, ttl)
		if primaryErr == nil {
			if idxErr := m.indexAdd(ctx, userID, indexKey, member, score); idxErr != nil {
				_ = m.primary.Delete(ctx, key)
				primaryErr = idxErr
			} else {
				return TierPrimary, nil
			}
		}
		if errors.Is(primaryErr, ErrStoreUnavailable) {
			m.markPrimaryDown(primaryErr)
		}
	}

	if err := m.fallback.Insert(ctx, rec); err != nil {
		return "", errors.Join(ErrFallbackWriteFailed, err, primaryErr)
	}
	return TierFallback, nil
}

// indexAdd serializes the index mutation per user and retries once on a
// reported conflict.
func (m *Manager) indexAdd(ctx context.Context, userID uuid.UUID, indexKey, member string, score float64) error {
	lockKey := userID.String()

	unlock := m.userLocks.lock(lockKey)
	err := m.primary.IndexAdd(ctx, indexKey, member, score)
	unlock()

	if errors.Is(err, ErrIndexConflict) {
		unlock = m.userLocks.lock(lockKey)
		defer unlock()
		return m.primary.IndexAdd(ctx, indexKey, member, score)
	}
	return err
}

func (m *Manager) indexRemove(ctx context.Context, userID uuid.UUID, indexKey string, members ...string) error {
	unlock := m.userLocks.lock(userID.String())
	defer unlock()
	return m.primary.IndexRemove(ctx, indexKey, members...)
}

// lookupSession resolves a session from the primary tier first, then
// the fallback. A fallback row with Active=false always reads as
// invalid: a credential once revoked is never resurrected by stale
// cache state.
func (m *Manager) lookupSession(ctx context.Context, id string) (*Session, error) {
	key := sessionKey(id)

	if m.primaryAvailable() {
		data, err := m.primary.Get(ctx, key)
		switch {
		case err == nil:
			sess, err := decodeSession(data)
			if err != nil {
				return nil, err
			}
			if !sess.Active || sess.IsExpired(m.now()) {
				return nil, ErrNotFound
			}
			sess.Tier = TierPrimary
			return sess, nil
		case errors.Is(err, ErrStoreUnavailable):
			m.markPrimaryDown(err)
		case errors.Is(err, ErrNotFound):
			// The record may be fallback-resident from an earlier outage.
		default:
			return nil, err
		}
	}

	rec, err := m.fallback.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.Kind != KindSession {
		return nil, ErrNotFound
	}
	if !rec.Active {
		m.log.WarnContext(ctx, "revoked session presented",
			logger.UserID(rec.UserID), logger.SessionID(id), logger.Tier(TierFallback))
		return nil, ErrNotFound
	}
	return sessionFromRecord(rec), nil
}

// lookupRememberToken mirrors lookupSession for the token namespace.
func (m *Manager) lookupRememberToken(ctx context.Context, token string) (*RememberToken, error) {
	key := rememberKey(token)

	if m.primaryAvailable() {
		data, err := m.primary.Get(ctx, key)
		switch {
		case err == nil:
			t, err := decodeRememberToken(data)
			if err != nil {
				return nil, err
			}
			if !t.Active || t.IsExpired(m.now()) {
				return nil, ErrNotFound
			}
			t.Tier = TierPrimary
			return t, nil
		case errors.Is(err, ErrStoreUnavailable):
			m.markPrimaryDown(err)
		case errors.Is(err, ErrNotFound):
		default:
			return nil, err
		}
	}

	rec, err := m.fallback.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.Kind != KindRemember {
		return nil, ErrNotFound
	}
	if !rec.Active {
		m.log.WarnContext(ctx, "revoked remember token presented",
			logger.UserID(rec.UserID), logger.Tier(TierFallback))
		return nil, ErrNotFound
	}
	return rememberTokenFromRecord(rec), nil
}

// revokeByKey invalidates a credential in whichever tier holds it. If
// the primary tier is unreachable and the fallback has no row, a
// revocation tombstone is written so the revoke outlives the outage.
func (m *Manager) revokeByKey(ctx context.Context, key string, kind Kind, member string) error {
	primaryDeleted := false
	owner := uuid.Nil

	if m.primaryAvailable() {
		if data, err := m.primary.Get(ctx, key); err == nil {
			owner = ownerOf(kind, data)
		} else if errors.Is(err, ErrStoreUnavailable) {
			m.markPrimaryDown(err)
		}

		if m.primaryAvailable() {
			if err := m.primary.Delete(ctx, key); err == nil {
				primaryDeleted = true
				if owner != uuid.Nil {
					_ = m.indexRemove(ctx, owner, indexKeyFor(kind, owner), member)
				}
			} else if errors.Is(err, ErrStoreUnavailable) {
				m.markPrimaryDown(err)
			}
		}
	}

	err := m.fallback.MarkInactive(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		if !primaryDeleted {
			// Neither tier holds a row we could flip; persist a tombstone
			// so a stale primary entry cannot resurrect the credential.
			now := m.now()
			tombstone := &Record{
				Key:       key,
				UserID:    owner,
				Kind:      kind,
				CreatedAt: now,
				ExpiresAt: now.Add(m.config.tombstoneTTL(kind)),
				Active:    false,
			}
			if err := m.fallback.Insert(ctx, tombstone); err != nil {
				return errors.Join(ErrFallbackWriteFailed, err)
			}
		}
	default:
		if !primaryDeleted {
			return err
		}
		m.log.WarnContext(ctx, "fallback revoke failed after primary delete",
			logger.Tier(TierFallback), logger.Error(err))
	}

	tier := TierFallback
	if primaryDeleted {
		tier = TierPrimary
	}
	m.log.InfoContext(ctx, "credential revoked",
		slog.String("kind", string(kind)), logger.Tier(tier))

	return nil
}

func (m *Manager) primaryAvailable() bool {
	return m.primaryUp.Load()
}

func (m *Manager) markPrimaryDown(err error) {
	if m.primaryUp.Swap(false) {
		m.log.Warn("primary store unavailable, routing to fallback", logger.Error(err))
	}
}

func sessionRecord(s *Session) *Record {
	return &Record{
		Key:         sessionKey(s.ID),
		UserID:      s.UserID,
		Kind:        KindSession,
		Role:        s.Role,
		Fingerprint: s.Fingerprint,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
		Active:      s.Active,
	}
}

func rememberRecord(t *RememberToken) *Record {
	return &Record{
		Key:         rememberKey(t.Token),
		UserID:      t.UserID,
		Kind:        KindRemember,
		Role:        t.Role,
		Fingerprint: t.Fingerprint,
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
		Active:      t.Active,
	}
}

func sessionFromRecord(rec *Record) *Session {
	return &Session{
		ID:          memberOf(rec.Key),
		UserID:      rec.UserID,
		Role:        rec.Role,
		Fingerprint: rec.Fingerprint,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
		Active:      rec.Active,
		Tier:        TierFallback,
	}
}

func rememberTokenFromRecord(rec *Record) *RememberToken {
	return &RememberToken{
		Token:       memberOf(rec.Key),
		UserID:      rec.UserID,
		Role:        rec.Role,
		Fingerprint: rec.Fingerprint,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
		Active:      rec.Active,
		Tier:        TierFallback,
	}
}

// memberOf strips the kind prefix from a storage key, recovering the
// raw identifier used as the index member.
func memberOf(key string) string {
	if id, ok := strings.CutPrefix(key, sessionKeyPrefix); ok {
		return id
	}
	if token, ok := strings.CutPrefix(key, rememberKeyPrefix); ok {
		return token
	}
	return key
}

func indexKeyFor(kind Kind, uid uuid.UUID) string {
	if kind == KindRemember {
		return userRememberKey(uid)
	}
	return userSessionsKey(uid)
}

// ownerOf extracts the owning user from a primary-tier payload for
// index maintenance; a zero UUID means the payload was unreadable.
func ownerOf(kind Kind, data []byte) uuid.UUID {
	switch kind {
	case KindRemember:
		if t, err := decodeRememberToken(data); err == nil {
			return t.UserID
		}
	default:
		if s, err := decodeSession(data); err == nil {
			return s.UserID
		}
	}
	return uuid.Nil
}
