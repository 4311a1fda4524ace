package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/payguard/transaction-engine/internal/checks"
	"github.com/payguard/transaction-engine/internal/models"
	"github.com/payguard/transaction-engine/internal/notify"
)

// Process applies a gateway result to a PENDING transaction. It transitions
// to PROCESSING, runs the processing-time checks and settles on COMPLETED or
// FAILED. Concurrent calls for the same ID are rejected rather than
// interleaved; calls on terminal transactions fail with an invalid-state
// error.
func (e *Engine) Process(id uuid.UUID, gateway models.GatewayResult) (*models.PaymentTransaction, error) {
	if err := e.acquire(id); err != nil {
		return nil, err
	}
	defer e.release(id)

	processing, err := e.store.Update(id, func(tx *models.PaymentTransaction) error {
		if tx.Status.IsTerminal() {
			return &EngineError{
				Code:    ErrCodeInvalidState,
				Message: fmt.Sprintf("transaction is already %s", tx.Status),
			}
		}
		if !tx.Status.CanTransitionTo(models.StatusProcessing) {
			return &EngineError{
				Code:    ErrCodeInvalidState,
				Message: fmt.Sprintf("cannot process transaction in state %s", tx.Status),
			}
		}
		tx.Status = models.StatusProcessing
		tx.UpdatedAt = e.now()
		return nil
	})
	if err != nil {
		return nil, e.wrapStoreError(err)
	}

	e.bus.Publish(processing)

	results := e.processing.Run(checks.Input{
		Transaction:        processing,
		Gateway:            &gateway,
		RecentTransactions: e.limiter.RecentTransactions(processing.UserID),
	})
	checksFailed := anyFailed(results)

	final, err := e.store.Update(id, func(tx *models.PaymentTransaction) error {
		tx.SecurityChecks = append(tx.SecurityChecks, results...)
		tx.RiskLevel = raiseRiskForChecks(tx.RiskLevel, results)
		tx.UpdatedAt = e.now()

		switch {
		case gateway.Status == models.GatewaySuccess && !checksFailed:
			tx.Status = models.StatusCompleted
			processedAt := e.now()
			tx.ProcessedAt = &processedAt
		case checksFailed && tx.RiskLevel == models.RiskCritical:
			tx.Status = models.StatusFrozen
			tx.FailureReason = "critical security check failed"
		default:
			tx.Status = models.StatusFailed
			if gateway.Status != models.GatewaySuccess && gateway.Error != "" {
				tx.FailureReason = gateway.Error
			} else if gateway.Status != models.GatewaySuccess {
				tx.FailureReason = "payment gateway reported failure"
			} else {
				tx.FailureReason = "security checks failed"
			}
		}
		return nil
	})
	if err != nil {
		return nil, e.wrapStoreError(err)
	}

	e.logger.Info("transaction processed",
		"transaction_id", final.ID,
		"status", final.Status,
		"checks_failed", checksFailed,
	)

	e.bus.Publish(final)
	e.notifyOutcome(final)

	return final, nil
}

// Refund moves a COMPLETED transaction to REFUNDED. Administrative call.
func (e *Engine) Refund(id uuid.UUID) (*models.PaymentTransaction, error) {
	return e.adminTransition(id, models.StatusRefunded, "")
}

// Dispute moves a COMPLETED transaction to DISPUTED. Administrative call.
func (e *Engine) Dispute(id uuid.UUID) (*models.PaymentTransaction, error) {
	return e.adminTransition(id, models.StatusDisputed, "")
}

// Freeze places a hold on any non-terminal transaction. Administrative call.
func (e *Engine) Freeze(id uuid.UUID, reason string) (*models.PaymentTransaction, error) {
	if reason == "" {
		reason = "transaction frozen by administrator"
	}
	return e.adminTransition(id, models.StatusFrozen, reason)
}

func (e *Engine) adminTransition(id uuid.UUID, target models.TransactionStatus, reason string) (*models.PaymentTransaction, error) {
	if err := e.acquire(id); err != nil {
		return nil, err
	}
	defer e.release(id)

	updated, err := e.store.Update(id, func(tx *models.PaymentTransaction) error {
		if !tx.Status.CanTransitionTo(target) {
			return &EngineError{
				Code:    ErrCodeInvalidState,
				Message: fmt.Sprintf("cannot move transaction from %s to %s", tx.Status, target),
			}
		}
		tx.Status = target
		tx.UpdatedAt = e.now()
		if reason != "" {
			tx.FailureReason = reason
		}
		return nil
	})
	if err != nil {
		return nil, e.wrapStoreError(err)
	}

	e.logger.Info("administrative transition applied",
		"transaction_id", updated.ID,
		"status", updated.Status,
	)

	e.bus.Publish(updated)
	return updated, nil
}

func (e *Engine) notifyOutcome(tx *models.PaymentTransaction) {
	switch tx.Status {
	case models.StatusCompleted:
		e.dispatcher.Dispatch(notify.Notification{
			UserID:   tx.UserID,
			Title:    "Payment successful",
			Message:  fmt.Sprintf("Your payment of %d %s for order %s was completed", tx.Amount, tx.Currency, tx.OrderID),
			Priority: notify.PriorityNormal,
			Metadata: map[string]string{"transaction_id": tx.ID.String()},
		})
	case models.StatusFailed, models.StatusFrozen:
		e.dispatcher.Dispatch(notify.Notification{
			UserID:   tx.UserID,
			Title:    "Payment failed",
			Message:  fmt.Sprintf("Your payment for order %s could not be completed: %s", tx.OrderID, tx.FailureReason),
			Priority: notify.PriorityHigh,
			Metadata: map[string]string{"transaction_id": tx.ID.String()},
		})
	}
}

// acquire marks a transaction as in flight, rejecting a concurrent second
// transition on the same ID.
func (e *Engine) acquire(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inFlight[id]; busy {
		return &EngineError{
			Code:    ErrCodeInvalidState,
			Message: "a state transition for this transaction is already in flight",
		}
	}
	e.inFlight[id] = struct{}{}
	return nil
}

func (e *Engine) release(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, id)
}

func (e *Engine) wrapStoreError(err error) error {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr
	}
	if errors.Is(err, models.ErrNotFound) {
		return &EngineError{
			Code:    ErrCodeNotFound,
			Message: "transaction not found",
			Err:     err,
		}
	}
	return &EngineError{
		Code:    ErrCodeInternal,
		Message: "failed to update transaction",
		Err:     err,
	}
}
