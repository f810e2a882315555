package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrimaryOpTimeout bounds every primary-store call so an
// unreachable Redis stalls a request by at most this long before the
// manager commits to the fallback path.
const DefaultPrimaryOpTimeout = 300 * time.Millisecond

// RedisStore implements PrimaryStore on go-redis. Values live under
// plain keys with a native TTL; the per-user index is a sorted set
// scored by expiry timestamp, which Redis mutates atomically.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

// NewRedisStore wraps a connected client. opTimeout bounds each
// operation; zero applies DefaultPrimaryOpTimeout.
func NewRedisStore(client redis.UniversalClient, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = DefaultPrimaryOpTimeout
	}
	return &RedisStore{client: client, opTimeout: opTimeout}
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return value, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) IndexAdd(ctx context.Context, indexKey, member string, score float64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.ZAdd(ctx, indexKey, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) IndexRange(ctx context.Context, indexKey string, min float64) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	// Prune members whose expiry score is already behind min, then
	// return the rest. Two round-trips, each atomic on its own.
	minStr := strconv.FormatFloat(min, 'f', -1, 64)
	if err := s.client.ZRemRangeByScore(ctx, indexKey, "-inf", "("+minStr).Err(); err != nil {
		return nil, unavailable(err)
	}

	members, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: minStr,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return members, nil
}

func (s *RedisStore) IndexRemove(ctx context.Context, indexKey string, members ...string) error {
	if len(members) == 0 {
		return nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.ZRem(ctx, indexKey, args...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// unavailable tags any non-miss failure (timeouts, refused connections,
// protocol errors) as a tier outage so the manager can route around it.
func unavailable(err error) error {
	return errors.Join(ErrStoreUnavailable, err)
}
