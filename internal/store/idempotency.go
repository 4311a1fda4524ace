package store

import (
	"context"
	"sync"
	"time"

	"github.com/payguard/transaction-engine/internal/models"
)

// IdempotencyStore caches responses to replay duplicate mutating requests.
type IdempotencyStore struct {
	entries map[idemKey]*models.IdempotencyKey
	mu      sync.RWMutex
}

type idemKey struct {
	key  string
	path string
}

// NewIdempotencyStore creates an empty idempotency cache.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		entries: make(map[idemKey]*models.IdempotencyKey),
	}
}

// Get returns the cached response for the key and path, or nil when the
// request has not been seen.
func (s *IdempotencyStore) Get(_ context.Context, key, requestPath string) (*models.IdempotencyKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached, ok := s.entries[idemKey{key: key, path: requestPath}]
	if !ok {
		return nil, nil
	}
	cp := *cached
	return &cp, nil
}

// Store caches a response for later replay.
func (s *IdempotencyStore) Store(_ context.Context, record *models.IdempotencyKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.entries[idemKey{key: cp.Key, path: cp.RequestPath}] = &cp
	return nil
}

// Prune drops cached responses older than maxAge.
func (s *IdempotencyStore) Prune(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for key, record := range s.entries {
		if record.CreatedAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}
