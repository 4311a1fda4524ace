// Package store provides the authoritative in-memory registry of payment
// transactions.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/payguard/transaction-engine/internal/crypto"
	"github.com/payguard/transaction-engine/internal/models"
)

// TransactionStore defines the interface for transaction state access. All
// reads return deep-copied snapshots; the store's records are the single
// mutable copy in the system.
type TransactionStore interface {
	Create(tx *models.PaymentTransaction, instrument models.PaymentInstrument) error
	Get(id uuid.UUID) (*models.PaymentTransaction, error)
	Update(id uuid.UUID, mutate func(tx *models.PaymentTransaction) error) (*models.PaymentTransaction, error)
	ListByUser(userID string) []*models.PaymentTransaction
	Snapshot() []*models.PaymentTransaction
	Delete(id uuid.UUID) bool
	Instrument(id uuid.UUID) (models.PaymentInstrument, error)
}

// memoryStore implements TransactionStore with a mutex-guarded map and a
// per-user index.
type memoryStore struct {
	codec   crypto.Codec
	entries map[uuid.UUID]*models.PaymentTransaction
	byUser  map[string][]uuid.UUID
	mu      sync.RWMutex
}

// New creates a TransactionStore sealing sensitive data with the given codec.
func New(codec crypto.Codec) TransactionStore {
	return &memoryStore{
		codec:   codec,
		entries: make(map[uuid.UUID]*models.PaymentTransaction),
		byUser:  make(map[string][]uuid.UUID),
	}
}

// Create seals the instrument into the transaction and inserts it. The raw
// instrument is never retained.
func (s *memoryStore) Create(tx *models.PaymentTransaction, instrument models.PaymentInstrument) error {
	blob, err := s.codec.Encode(instrument)
	if err != nil {
		return fmt.Errorf("failed to seal payment data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[tx.ID]; exists {
		return models.ErrDuplicateTransaction
	}

	record := tx.Clone()
	record.EncryptedPaymentData = blob
	s.entries[record.ID] = record
	s.byUser[record.UserID] = append(s.byUser[record.UserID], record.ID)

	tx.EncryptedPaymentData = blob
	return nil
}

// Get returns a snapshot of the transaction with the given ID.
func (s *memoryStore) Get(id uuid.UUID) (*models.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.entries[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return record.Clone(), nil
}

// Update applies mutate to the stored record under the write lock and returns
// a snapshot of the result. When mutate returns an error the record is left
// untouched.
func (s *memoryStore) Update(id uuid.UUID, mutate func(tx *models.PaymentTransaction) error) (*models.PaymentTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.entries[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	scratch := record.Clone()
	if err := mutate(scratch); err != nil {
		return nil, err
	}

	s.entries[id] = scratch
	return scratch.Clone(), nil
}

// ListByUser returns the user's transactions, newest first.
func (s *memoryStore) ListByUser(userID string) []*models.PaymentTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	result := make([]*models.PaymentTransaction, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if record, ok := s.entries[ids[i]]; ok {
			result = append(result, record.Clone())
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Snapshot returns a copy of every stored transaction, for sweeps.
func (s *memoryStore) Snapshot() []*models.PaymentTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.PaymentTransaction, 0, len(s.entries))
	for _, record := range s.entries {
		result = append(result, record.Clone())
	}
	return result
}

// Delete removes a transaction and its index entry. Reports whether a record
// was removed.
func (s *memoryStore) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.entries[id]
	if !ok {
		return false
	}

	delete(s.entries, id)

	ids := s.byUser[record.UserID]
	for i, candidate := range ids {
		if candidate == id {
			s.byUser[record.UserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byUser[record.UserID]) == 0 {
		delete(s.byUser, record.UserID)
	}
	return true
}

// Instrument opens the sealed payment data of a transaction. Administrative
// use only; the clear instrument is never exposed through snapshots.
func (s *memoryStore) Instrument(id uuid.UUID) (models.PaymentInstrument, error) {
	s.mu.RLock()
	record, ok := s.entries[id]
	var blob string
	if ok {
		blob = record.EncryptedPaymentData
	}
	s.mu.RUnlock()

	if !ok {
		return models.PaymentInstrument{}, models.ErrNotFound
	}
	return s.codec.Decode(blob)
}
