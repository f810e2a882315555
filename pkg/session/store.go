package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PrimaryStore is the fast, volatile credential tier. Implementations
// must bound every call with a short timeout and distinguish a true
// outage (ErrStoreUnavailable) from a legitimate miss (ErrNotFound):
// the manager routes to the fallback tier only on the former.
//
// The per-user index is a scored set mapping an index key to credential
// identifiers; scores are expiry timestamps so expired members can be
// pruned during range reads. Index mutations must be atomic at the
// store level.
type PrimaryStore interface {
	// Put stores value under key with the given TTL.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value under key, ErrNotFound when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// IndexAdd inserts member into the scored set at indexKey.
	IndexAdd(ctx context.Context, indexKey, member string, score float64) error

	// IndexRange returns members of the set at indexKey whose score is
	// at least min, pruning older members as a side effect.
	IndexRange(ctx context.Context, indexKey string, min float64) ([]string, error)

	// IndexRemove removes members from the set at indexKey.
	IndexRemove(ctx context.Context, indexKey string, members ...string) error

	// Ping probes tier availability; used by the background reconciler.
	Ping(ctx context.Context) error
}

// Record is the fallback tier's single-namespace row. Key is unique
// across both kinds, so sessions and remember tokens can never collide.
type Record struct {
	Key         string
	UserID      uuid.UUID
	Kind        Kind
	Role        string
	Fingerprint string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Active      bool
}

// FallbackStore is the durable credential tier. Rows are soft-revoked
// (Active=false), never physically deleted on logout; expired rows are
// filtered lazily at read time and reaped by DeleteExpired.
type FallbackStore interface {
	// Insert persists a new record. Inserting an existing key updates
	// it in place (revocation tombstones overwrite stale rows).
	Insert(ctx context.Context, rec *Record) error

	// FindByKey returns the record, ErrNotFound when absent or past
	// expiry. Inactive records ARE returned so revocation wins over any
	// stale primary-tier state.
	FindByKey(ctx context.Context, key string) (*Record, error)

	// UpdateExpiry moves a record's expiry for sliding-window refresh.
	UpdateExpiry(ctx context.Context, key string, expiresAt time.Time) error

	// MarkInactive soft-revokes the record under key; ErrNotFound when
	// no such row exists.
	MarkInactive(ctx context.Context, key string) error

	// MarkInactiveByUser soft-revokes every active record of a user.
	MarkInactiveByUser(ctx context.Context, userID uuid.UUID) error

	// ListActiveByUser returns the user's active, unexpired records.
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*Record, error)

	// ListInactive returns revoked but unexpired records; the
	// reconciler replays these against a recovered primary tier.
	ListInactive(ctx context.Context) ([]*Record, error)

	// DeleteExpired reaps rows past expiry.
	DeleteExpired(ctx context.Context) error
}
