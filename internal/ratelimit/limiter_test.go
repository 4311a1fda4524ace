package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	limiter := New(10 * time.Minute)
	limiter.SetClock(clock.Now)
	return limiter, clock
}

func TestLimiterAttempts(t *testing.T) {
	t.Run("counts attempts inside the window", func(t *testing.T) {
		limiter, _ := newTestLimiter()

		assert.Equal(t, 0, limiter.Attempts("user-1"))

		limiter.RecordAttempt("user-1")
		limiter.RecordAttempt("user-1")
		limiter.RecordAttempt("user-1")

		assert.Equal(t, 3, limiter.Attempts("user-1"))
		assert.Equal(t, 0, limiter.Attempts("user-2"))
	})

	t.Run("attempts expire after the window", func(t *testing.T) {
		limiter, clock := newTestLimiter()

		limiter.RecordAttempt("user-1")
		limiter.RecordAttempt("user-1")

		clock.Advance(11 * time.Minute)

		assert.Equal(t, 0, limiter.Attempts("user-1"))
	})

	t.Run("partial expiry keeps newer attempts", func(t *testing.T) {
		limiter, clock := newTestLimiter()

		limiter.RecordAttempt("user-1")
		clock.Advance(6 * time.Minute)
		limiter.RecordAttempt("user-1")
		clock.Advance(5 * time.Minute)

		// First attempt is 11m old, second is 5m old.
		assert.Equal(t, 1, limiter.Attempts("user-1"))
	})
}

func TestLimiterRecentTransactions(t *testing.T) {
	t.Run("counts transactions inside the window", func(t *testing.T) {
		limiter, _ := newTestLimiter()

		for range 5 {
			limiter.RecordTransaction("user-1")
		}

		assert.Equal(t, 5, limiter.RecentTransactions("user-1"))
	})

	t.Run("transactions are independent of attempts", func(t *testing.T) {
		limiter, _ := newTestLimiter()

		limiter.RecordTransaction("user-1")
		limiter.RecordTransaction("user-1")

		assert.Equal(t, 0, limiter.Attempts("user-1"))
		assert.Equal(t, 2, limiter.RecentTransactions("user-1"))
	})

	t.Run("never reports stale counts after full window elapses", func(t *testing.T) {
		limiter, clock := newTestLimiter()

		limiter.RecordTransaction("user-1")
		limiter.RecordAttempt("user-1")

		clock.Advance(10*time.Minute + time.Second)

		assert.Equal(t, 0, limiter.RecentTransactions("user-1"))
		assert.Equal(t, 0, limiter.Attempts("user-1"))
	})
}

func TestLimiterSweep(t *testing.T) {
	limiter, clock := newTestLimiter()

	limiter.RecordAttempt("user-1")
	limiter.RecordTransaction("user-2")

	clock.Advance(11 * time.Minute)
	limiter.RecordAttempt("user-3")

	limiter.Sweep()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.entries, 1)
	assert.Contains(t, limiter.entries, "user-3")
}
