package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process PrimaryStore for tests and local
// development. SetAvailable(false) makes every call fail with
// ErrStoreUnavailable, simulating a tier outage.
type MemoryStore struct {
	mu        sync.RWMutex
	values    map[string]memoryEntry
	indexes   map[string]map[string]float64
	available bool
	now       func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an available, empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:    make(map[string]memoryEntry),
		indexes:   make(map[string]map[string]float64),
		available: true,
		now:       time.Now,
	}
}

// SetAvailable toggles the simulated tier outage.
func (m *MemoryStore) SetAvailable(up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = up
}

func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.available {
		return ErrStoreUnavailable
	}

	m.values[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.available {
		return nil, ErrStoreUnavailable
	}

	entry, ok := m.values[key]
	if !ok || m.now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.available {
		return ErrStoreUnavailable
	}

	delete(m.values, key)
	return nil
}

func (m *MemoryStore) IndexAdd(ctx context.Context, indexKey, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.available {
		return ErrStoreUnavailable
	}

	idx, ok := m.indexes[indexKey]
	if !ok {
		idx = make(map[string]float64)
		m.indexes[indexKey] = idx
	}
	idx[member] = score
	return nil
}

func (m *MemoryStore) IndexRange(ctx context.Context, indexKey string, min float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.available {
		return nil, ErrStoreUnavailable
	}

	idx := m.indexes[indexKey]
	members := make([]string, 0, len(idx))
	for member, score := range idx {
		if score < min {
			delete(idx, member)
			continue
		}
		members = append(members, member)
	}
	return members, nil
}

func (m *MemoryStore) IndexRemove(ctx context.Context, indexKey string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.available {
		return ErrStoreUnavailable
	}

	idx := m.indexes[indexKey]
	for _, member := range members {
		delete(idx, member)
	}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.available {
		return ErrStoreUnavailable
	}
	return nil
}

// MemoryFallback is an in-process FallbackStore for tests and local
// development. FailWrites(true) makes Insert fail, simulating a durable
// tier that rejects writes.
type MemoryFallback struct {
	mu         sync.RWMutex
	records    map[string]*Record
	failWrites bool
	now        func() time.Time
}

// NewMemoryFallback creates an empty fallback store.
func NewMemoryFallback() *MemoryFallback {
	return &MemoryFallback{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// FailWrites toggles simulated write failures.
func (m *MemoryFallback) FailWrites(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = fail
}

func (m *MemoryFallback) Insert(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites {
		return ErrStoreUnavailable
	}

	clone := *rec
	if existing, ok := m.records[rec.Key]; ok {
		// Matches the SQL upsert: a revoked row never flips back active.
		clone.Active = existing.Active && rec.Active
		clone.CreatedAt = existing.CreatedAt
		clone.Kind = existing.Kind
	}
	m.records[rec.Key] = &clone
	return nil
}

func (m *MemoryFallback) FindByKey(ctx context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok || m.now().After(rec.ExpiresAt) {
		return nil, ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *MemoryFallback) UpdateExpiry(ctx context.Context, key string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok || !rec.Active {
		return ErrNotFound
	}
	rec.ExpiresAt = expiresAt
	return nil
}

func (m *MemoryFallback) MarkInactive(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return ErrNotFound
	}
	rec.Active = false
	return nil
}

func (m *MemoryFallback) MarkInactiveByUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.records {
		if rec.UserID == userID {
			rec.Active = false
		}
	}
	return nil
}

func (m *MemoryFallback) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var recs []*Record
	for _, rec := range m.records {
		if rec.UserID == userID && rec.Active && now.Before(rec.ExpiresAt) {
			clone := *rec
			recs = append(recs, &clone)
		}
	}
	return recs, nil
}

func (m *MemoryFallback) ListInactive(ctx context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var recs []*Record
	for _, rec := range m.records {
		if !rec.Active && now.Before(rec.ExpiresAt) {
			clone := *rec
			recs = append(recs, &clone)
		}
	}
	return recs, nil
}

func (m *MemoryFallback) DeleteExpired(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, rec := range m.records {
		if now.After(rec.ExpiresAt) {
			delete(m.records, key)
		}
	}
	return nil
}
