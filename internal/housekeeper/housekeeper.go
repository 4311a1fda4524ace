// Package housekeeper runs the periodic sweeps that cancel stale PENDING
// transactions and prune old records.
package housekeeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/payguard/transaction-engine/internal/config"
	"github.com/payguard/transaction-engine/internal/events"
	"github.com/payguard/transaction-engine/internal/models"
	"github.com/payguard/transaction-engine/internal/ratelimit"
	"github.com/payguard/transaction-engine/internal/store"
)

// TimeoutReason is the failure reason stamped on timed-out transactions.
const TimeoutReason = "Payment timeout"

var errStateChanged = errors.New("state changed since snapshot")

// Housekeeper owns the timeout and retention sweeps. Sweeps are safe to run
// concurrently with engine calls: every cancellation re-checks the
// transaction state under the store lock.
type Housekeeper struct {
	store   store.TransactionStore
	bus     *events.Bus
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	now     func() time.Time

	paymentTimeout    time.Duration
	timeoutInterval   time.Duration
	retentionPeriod   time.Duration
	retentionInterval time.Duration
}

// New creates a Housekeeper from the housekeeping and security configuration.
func New(
	txStore store.TransactionStore,
	bus *events.Bus,
	limiter *ratelimit.Limiter,
	security *config.SecurityConfig,
	housekeeping *config.HousekeepingConfig,
	logger *slog.Logger,
) *Housekeeper {
	return &Housekeeper{
		store:             txStore,
		bus:               bus,
		limiter:           limiter,
		logger:            logger,
		now:               time.Now,
		paymentTimeout:    security.PaymentTimeout,
		timeoutInterval:   housekeeping.TimeoutSweepInterval,
		retentionPeriod:   housekeeping.RetentionPeriod,
		retentionInterval: housekeeping.RetentionSweepInterval,
	}
}

// SetClock overrides the time source. Intended for tests.
func (h *Housekeeper) SetClock(now func() time.Time) {
	h.now = now
}

// Run starts both sweep loops and blocks until ctx is cancelled.
func (h *Housekeeper) Run(ctx context.Context) {
	timeoutTicker := time.NewTicker(h.timeoutInterval)
	defer timeoutTicker.Stop()

	retentionTicker := time.NewTicker(h.retentionInterval)
	defer retentionTicker.Stop()

	h.logger.Info("housekeeper started",
		"timeout_interval", h.timeoutInterval,
		"retention_interval", h.retentionInterval,
	)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("housekeeper stopped")
			return
		case <-timeoutTicker.C:
			h.SweepTimeouts()
			h.limiter.Sweep()
		case <-retentionTicker.C:
			h.SweepRetention()
		}
	}
}

// SweepTimeouts cancels every transaction still PENDING past the payment
// timeout and publishes the update.
func (h *Housekeeper) SweepTimeouts() {
	cutoff := h.now().Add(-h.paymentTimeout)

	for _, candidate := range h.store.Snapshot() {
		if candidate.Status != models.StatusPending || candidate.CreatedAt.After(cutoff) {
			continue
		}

		cancelled, err := h.store.Update(candidate.ID, func(tx *models.PaymentTransaction) error {
			// The transaction may have progressed between the snapshot and
			// this update; only still-PENDING records are cancelled.
			if tx.Status != models.StatusPending {
				return errStateChanged
			}
			tx.Status = models.StatusCancelled
			tx.FailureReason = TimeoutReason
			tx.UpdatedAt = h.now()
			return nil
		})
		if err != nil {
			if !errors.Is(err, errStateChanged) && !errors.Is(err, models.ErrNotFound) {
				h.logger.Error("failed to cancel timed-out transaction",
					"transaction_id", candidate.ID,
					"error", err,
				)
			}
			continue
		}

		h.logger.Info("transaction cancelled after timeout",
			"transaction_id", cancelled.ID,
			"user_id", cancelled.UserID,
		)
		h.bus.Publish(cancelled)
	}
}

// SweepRetention purges every transaction older than the retention period,
// regardless of state.
func (h *Housekeeper) SweepRetention() {
	cutoff := h.now().Add(-h.retentionPeriod)
	purged := 0

	for _, candidate := range h.store.Snapshot() {
		if candidate.CreatedAt.After(cutoff) {
			continue
		}
		if h.store.Delete(candidate.ID) {
			purged++
		}
	}

	if purged > 0 {
		h.logger.Info("retention sweep purged transactions", "count", purged)
	}
}
