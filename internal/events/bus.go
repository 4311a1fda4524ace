// Package events provides synchronous broadcast of transaction-state changes
// to registered observers.
package events

import (
	"log/slog"
	"sync"

	"github.com/payguard/transaction-engine/internal/models"
)

// Handler receives a transaction snapshot on every published state change.
type Handler func(tx *models.PaymentTransaction)

// Bus is a synchronous multicast of transaction events. Publish invokes every
// subscriber in turn; a panicking subscriber is logged and skipped so it
// cannot block delivery to the rest.
type Bus struct {
	logger      *slog.Logger
	subscribers map[int]Handler
	nextID      int
	mu          sync.Mutex
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger:      logger,
		subscribers: make(map[int]Handler),
	}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *Bus) Subscribe(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subscribers[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// Publish delivers a snapshot to every current subscriber, synchronously and
// in subscription order.
func (b *Bus) Publish(tx *models.PaymentTransaction) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	handlers := make(map[int]Handler, len(ids))
	for id, handler := range b.subscribers {
		handlers[id] = handler
	}
	b.mu.Unlock()

	// Stable delivery order regardless of map iteration.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}

	for _, id := range ids {
		b.deliver(handlers[id], tx)
	}
}

func (b *Bus) deliver(handler Handler, tx *models.PaymentTransaction) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("event subscriber panicked",
				"transaction_id", tx.ID,
				"panic", rec,
			)
		}
	}()

	handler(tx.Clone())
}
