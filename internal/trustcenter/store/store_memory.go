package store

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"fts/pkg/platform/sentinel"
)

type memoryEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for development and tests. Expired
// entries are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// live returns the entry for key if it exists and has not expired.
// Callers must hold mu.
func (s *MemoryStore) live(key string) (*memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

func (s *MemoryStore) PutAll(_ context.Context, transferID string, fields map[string]string, ttl time.Duration) error {
	if len(fields) == 0 {
		return nil
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(transferID)
	if !ok {
		e = &memoryEntry{fields: make(map[string]string, len(fields))}
		s.entries[transferID] = e
	}
	maps.Copy(e.fields, fields)
	e.expiresAt = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) ReadAll(_ context.Context, transferID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(transferID)
	if !ok {
		return map[string]string{}, nil
	}
	return maps.Clone(e.fields), nil
}

func (s *MemoryStore) Expire(_ context.Context, transferID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(transferID)
	if !ok {
		return sentinel.ErrNotFound
	}
	e.expiresAt = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, transferID, field, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(transferID)
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if _, exists := e.fields[field]; exists {
		return false, nil
	}
	e.fields[field] = value
	return true, nil
}

func (s *MemoryStore) Health(context.Context) error {
	return nil
}
