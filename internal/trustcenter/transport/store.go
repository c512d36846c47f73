package transport

import (
	"context"
	"time"
)

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

// Store is the TTL-bound hash store holding per-transfer state. Every write
// lands together with its expiry or not at all.
type Store interface {
	PutAll(ctx context.Context, transferID string, fields map[string]string, ttl time.Duration) error
	// ReadAll returns an empty map for unknown or expired transfers.
	ReadAll(ctx context.Context, transferID string) (map[string]string, error)
	// Expire returns sentinel.ErrNotFound for unknown or expired transfers.
	Expire(ctx context.Context, transferID string, ttl time.Duration) error
	// SetIfAbsent returns sentinel.ErrNotFound for unknown or expired transfers
	// and never creates one.
	SetIfAbsent(ctx context.Context, transferID, field, value string) (bool, error)
	Health(ctx context.Context) error
}
