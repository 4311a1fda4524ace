// Package ratelimit tracks per-user payment attempts and transaction velocity
// inside a sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter maintains per-user sliding-window counters. Attempts feed the
// rate-limit cap; transaction timestamps feed the velocity detectors. A user's
// state is dropped once no activity remains inside the window, so counts are
// never negative and never stale.
type Limiter struct {
	now     func() time.Time
	entries map[string]*entry
	window  time.Duration
	mu      sync.Mutex
}

type entry struct {
	attempts     []time.Time
	transactions []time.Time
}

// New creates a Limiter with the given window.
func New(window time.Duration) *Limiter {
	return &Limiter{
		window:  window,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// RecordAttempt registers a payment attempt for the user.
func (l *Limiter) RecordAttempt(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entryLocked(userID)
	e.attempts = append(e.attempts, l.now())
}

// RecordTransaction registers a created transaction for velocity tracking.
func (l *Limiter) RecordTransaction(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entryLocked(userID)
	e.transactions = append(e.transactions, l.now())
}

// Attempts returns the number of attempts the user has made inside the window.
func (l *Limiter) Attempts(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.pruneLocked(userID)
	if e == nil {
		return 0
	}
	return len(e.attempts)
}

// RecentTransactions returns the number of transactions the user created
// inside the window.
func (l *Limiter) RecentTransactions(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.pruneLocked(userID)
	if e == nil {
		return 0
	}
	return len(e.transactions)
}

// Sweep drops every user whose window has fully elapsed. Counts are also
// pruned lazily on read; the sweep keeps idle users from pinning memory.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for userID := range l.entries {
		l.pruneLocked(userID)
	}
}

func (l *Limiter) entryLocked(userID string) *entry {
	e, ok := l.entries[userID]
	if !ok {
		e = &entry{}
		l.entries[userID] = e
	}
	return e
}

// pruneLocked removes expired activity and deletes the entry when nothing
// remains inside the window. Returns nil when the entry was dropped.
func (l *Limiter) pruneLocked(userID string) *entry {
	e, ok := l.entries[userID]
	if !ok {
		return nil
	}

	cutoff := l.now().Add(-l.window)
	e.attempts = pruneBefore(e.attempts, cutoff)
	e.transactions = pruneBefore(e.transactions, cutoff)

	if len(e.attempts) == 0 && len(e.transactions) == 0 {
		delete(l.entries, userID)
		return nil
	}
	return e
}

func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
