// Package store implements the TTL-bound hash store holding broker-side
// transfer state: one hash per transfer id, written atomically with its expiry.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"fts/pkg/platform/sentinel"
)

var (
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fts_store_operation_duration_seconds",
		Help:    "Latency of transfer store operations",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"operation"})
)

const (
	// Redis key prefix for transfer hashes
	transferKeyPrefix = "transport-mapping:"
)

// setIfAbsentScript sets a hash field only when the hash exists and the field
// does not. It never creates a hash, so no key can appear without a TTL.
//
// Returns -1 when the hash is missing, 1 when the field was set, 0 otherwise.
var setIfAbsentScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2])
`)

// RedisStore is the production Store backed by Redis hashes.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: transferKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) key(transferID string) string {
	return s.keyPrefix + transferID
}

func observe(op string, start time.Time) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// PutAll writes fields and the expiry in one MULTI/EXEC transaction.
func (s *RedisStore) PutAll(ctx context.Context, transferID string, fields map[string]string, ttl time.Duration) error {
	defer observe("put_all", time.Now())
	if len(fields) == 0 {
		return nil
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	key := s.key(transferID)
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: put transfer: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// ReadAll returns every field of the transfer hash. A missing or expired hash
// yields an empty map.
func (s *RedisStore) ReadAll(ctx context.Context, transferID string) (map[string]string, error) {
	defer observe("read_all", time.Now())
	fields, err := s.client.HGetAll(ctx, s.key(transferID)).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read transfer: %w", sentinel.ErrUnavailable, err)
	}
	return fields, nil
}

// Expire resets the TTL of an existing hash.
func (s *RedisStore) Expire(ctx context.Context, transferID string, ttl time.Duration) error {
	defer observe("expire", time.Now())
	ok, err := s.client.PExpire(ctx, s.key(transferID), ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: expire transfer: %w", sentinel.ErrUnavailable, err)
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

// SetIfAbsent atomically sets field on an existing hash unless it is present.
// It reports whether the field was set and returns sentinel.ErrNotFound when
// the hash does not exist.
func (s *RedisStore) SetIfAbsent(ctx context.Context, transferID, field, value string) (bool, error) {
	defer observe("set_if_absent", time.Now())
	res, err := setIfAbsentScript.Run(ctx, s.client, []string{s.key(transferID)}, field, value).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: set field: %w", sentinel.ErrUnavailable, err)
	}
	switch res {
	case -1:
		return false, sentinel.ErrNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

// Health pings Redis.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
