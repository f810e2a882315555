package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements FallbackStore on a pgx pool over the
// auth_credentials table (see migrations/). Sessions and remember
// tokens share the namespace with a kind discriminator; the key column
// is unique across both. There is no TTL-based eviction: expiry is
// applied lazily at read time and by the DeleteExpired sweep.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGStore wraps a connected pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, now: time.Now}
}

func (s *PGStore) Insert(ctx context.Context, rec *Record) error {
	// Upsert so a revocation tombstone can overwrite a stale row, and a
	// replayed insert after a partial failure stays idempotent.
	const q = `
		INSERT INTO auth_credentials (key, user_id, kind, role, fingerprint, created_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    role = EXCLUDED.role,
		    fingerprint = EXCLUDED.fingerprint,
		    expires_at = EXCLUDED.expires_at,
		    active = auth_credentials.active AND EXCLUDED.active`

	_, err := s.pool.Exec(ctx, q,
		rec.Key, rec.UserID, rec.Kind, rec.Role, rec.Fingerprint,
		rec.CreatedAt, rec.ExpiresAt, rec.Active)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PGStore) FindByKey(ctx context.Context, key string) (*Record, error) {
	const q = `
		SELECT key, user_id, kind, role, fingerprint, created_at, expires_at, active
		FROM auth_credentials
		WHERE key = $1`

	rec, err := s.scanOne(s.pool.QueryRow(ctx, q, key))
	if err != nil {
		return nil, err
	}

	// Lazy expiry: rows past expires_at are treated as absent.
	if s.now().After(rec.ExpiresAt) {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *PGStore) UpdateExpiry(ctx context.Context, key string, expiresAt time.Time) error {
	const q = `UPDATE auth_credentials SET expires_at = $2 WHERE key = $1 AND active`

	tag, err := s.pool.Exec(ctx, q, key, expiresAt)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) MarkInactive(ctx context.Context, key string) error {
	const q = `UPDATE auth_credentials SET active = FALSE WHERE key = $1`

	tag, err := s.pool.Exec(ctx, q, key)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) MarkInactiveByUser(ctx context.Context, userID uuid.UUID) error {
	const q = `UPDATE auth_credentials SET active = FALSE WHERE user_id = $1 AND active`

	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PGStore) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*Record, error) {
	const q = `
		SELECT key, user_id, kind, role, fingerprint, created_at, expires_at, active
		FROM auth_credentials
		WHERE user_id = $1 AND active AND expires_at > $2`

	rows, err := s.pool.Query(ctx, q, userID, s.now())
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return s.scanAll(rows)
}

func (s *PGStore) ListInactive(ctx context.Context) ([]*Record, error) {
	const q = `
		SELECT key, user_id, kind, role, fingerprint, created_at, expires_at, active
		FROM auth_credentials
		WHERE NOT active AND expires_at > $1`

	rows, err := s.pool.Query(ctx, q, s.now())
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return s.scanAll(rows)
}

func (s *PGStore) DeleteExpired(ctx context.Context) error {
	const q = `DELETE FROM auth_credentials WHERE expires_at <= $1`

	if _, err := s.pool.Exec(ctx, q, s.now()); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PGStore) scanOne(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.Key, &rec.UserID, &rec.Kind, &rec.Role,
		&rec.Fingerprint, &rec.CreatedAt, &rec.ExpiresAt, &rec.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return &rec, nil
}

func (s *PGStore) scanAll(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Key, &rec.UserID, &rec.Kind, &rec.Role,
			&rec.Fingerprint, &rec.CreatedAt, &rec.ExpiresAt, &rec.Active); err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return recs, nil
}
