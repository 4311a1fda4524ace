// Package engine orchestrates the payment-transaction lifecycle: validation,
// creation, fraud scoring, security checks, state transitions and event
// emission.
package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/payguard/transaction-engine/internal/checks"
	"github.com/payguard/transaction-engine/internal/config"
	"github.com/payguard/transaction-engine/internal/events"
	"github.com/payguard/transaction-engine/internal/fraud"
	"github.com/payguard/transaction-engine/internal/models"
	"github.com/payguard/transaction-engine/internal/notify"
	"github.com/payguard/transaction-engine/internal/ratelimit"
	"github.com/payguard/transaction-engine/internal/store"
)

// AdminAudience is the pseudo user ID high-risk alerts are addressed to.
const AdminAudience = "administrators"

// ValidationResult is the outcome of Validate. Warnings do not affect
// validity.
type ValidationResult struct {
	Errors    []string
	Warnings  []string
	RiskLevel models.RiskLevel
	Valid     bool
}

// Engine is the core transaction orchestrator. All state mutations go through
// it; events are published after the owning store lock is released.
type Engine struct {
	cfg        *config.SecurityConfig
	store      store.TransactionStore
	limiter    *ratelimit.Limiter
	scorer     *fraud.Scorer
	creation   *checks.Registry
	processing *checks.Registry
	bus        *events.Bus
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	now        func() time.Time

	// inFlight serializes Process calls per transaction ID.
	inFlight map[uuid.UUID]struct{}
	mu       sync.Mutex
}

// New creates an Engine with the given collaborators.
func New(
	cfg *config.SecurityConfig,
	txStore store.TransactionStore,
	limiter *ratelimit.Limiter,
	scorer *fraud.Scorer,
	creation *checks.Registry,
	processing *checks.Registry,
	bus *events.Bus,
	dispatcher notify.Dispatcher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		store:      txStore,
		limiter:    limiter,
		scorer:     scorer,
		creation:   creation,
		processing: processing,
		bus:        bus,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		inFlight:   make(map[uuid.UUID]struct{}),
	}
}

// SetClock overrides the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Validate checks a payment request without side effects. The rate limiter is
// read but never mutated.
func (e *Engine) Validate(req models.PaymentRequest, _ models.UserContext) ValidationResult {
	result := ValidationResult{}

	if err := ValidateAmountBounds(req.Amount, e.cfg.MinAmount, e.cfg.MaxAmount); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	if err := ValidateCurrency(req.Currency, e.cfg.AllowedCurrencies); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	if !req.Method.IsKnown() {
		result.Errors = append(result.Errors, fmt.Sprintf("unknown payment method: %s", req.Method))
	}

	if e.limiter.Attempts(req.UserID) >= e.cfg.MaxAttempts {
		result.Errors = append(result.Errors, fmt.Sprintf("too many payment attempts: limit is %d per window", e.cfg.MaxAttempts))
	}

	if req.Method.IsCardBased() {
		if err := ValidateLuhn(req.Instrument.CardNumber); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		if err := ValidateCVV(req.Instrument.CVV); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		if err := ValidateExpiry(req.Instrument.ExpiryMonth, req.Instrument.ExpiryYear, e.now()); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	score := e.scorer.Score(req.UserID, req.Amount)
	result.RiskLevel = e.scorer.RiskFor(score, req.Amount)

	if req.Amount > e.cfg.HighValueThreshold {
		result.Warnings = append(result.Warnings, fmt.Sprintf("high-value transaction: amount %d exceeds threshold %d", req.Amount, e.cfg.HighValueThreshold))
		result.RiskLevel = result.RiskLevel.Max(models.RiskHigh)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// Create validates the request, builds a PENDING transaction, scores it, runs
// the creation-time check pipeline, persists it and publishes a created
// event. High and critical risk transactions additionally raise an
// administrative alert.
func (e *Engine) Create(req models.PaymentRequest, userCtx models.UserContext) (*models.PaymentTransaction, error) {
	if e.limiter.Attempts(req.UserID) >= e.cfg.MaxAttempts {
		return nil, &EngineError{
			Code:    ErrCodeRateLimited,
			Message: fmt.Sprintf("too many payment attempts: limit is %d per window", e.cfg.MaxAttempts),
		}
	}

	validation := e.Validate(req, userCtx)
	if !validation.Valid {
		return nil, &EngineError{
			Code:    ErrCodeValidation,
			Message: strings.Join(validation.Errors, "; "),
		}
	}

	now := e.now()
	score := e.scorer.Score(req.UserID, req.Amount)
	risk := e.scorer.RiskFor(score, req.Amount)
	if req.Amount > e.cfg.HighValueThreshold {
		risk = risk.Max(models.RiskHigh)
	}

	tx := &models.PaymentTransaction{
		ID:                uuid.New(),
		OrderID:           req.OrderID,
		UserID:            req.UserID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Method:            req.Method,
		Status:            models.StatusPending,
		FraudScore:        score,
		RiskLevel:         risk,
		IPAddress:         userCtx.IPAddress,
		UserAgent:         userCtx.UserAgent,
		DeviceFingerprint: userCtx.DeviceFingerprint,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	results := e.creation.Run(checks.Input{
		Transaction:        tx,
		RecentTransactions: e.limiter.RecentTransactions(req.UserID),
	})
	tx.SecurityChecks = append(tx.SecurityChecks, results...)
	tx.RiskLevel = raiseRiskForChecks(tx.RiskLevel, results)

	// A hard failure on a critical-risk transaction freezes it immediately.
	if tx.RiskLevel == models.RiskCritical && anyFailed(results) {
		tx.Status = models.StatusFrozen
		tx.FailureReason = "critical security check failed"
	}

	e.limiter.RecordAttempt(req.UserID)
	e.limiter.RecordTransaction(req.UserID)

	if err := e.store.Create(tx, req.Instrument); err != nil {
		return nil, &EngineError{
			Code:    ErrCodeEncoding,
			Message: "failed to secure payment data",
			Err:     err,
		}
	}

	snapshot := tx.Clone()

	e.logger.Info("transaction created",
		"transaction_id", tx.ID,
		"user_id", tx.UserID,
		"amount", tx.Amount,
		"risk_level", tx.RiskLevel,
	)

	e.bus.Publish(snapshot)

	if tx.RiskLevel.AtLeast(models.RiskHigh) {
		e.dispatcher.Dispatch(notify.Notification{
			UserID:   AdminAudience,
			Title:    "High-risk transaction created",
			Message:  fmt.Sprintf("Transaction %s for user %s flagged %s risk", tx.ID, tx.UserID, tx.RiskLevel),
			Priority: notify.PriorityUrgent,
			Metadata: map[string]string{
				"transaction_id": tx.ID.String(),
				"risk_level":     string(tx.RiskLevel),
				"fraud_score":    strconv.Itoa(tx.FraudScore),
			},
		})
	}

	return snapshot, nil
}

// GetStatus returns a snapshot of the transaction with the given ID.
func (e *Engine) GetStatus(id uuid.UUID) (*models.PaymentTransaction, error) {
	tx, err := e.store.Get(id)
	if err != nil {
		return nil, &EngineError{
			Code:    ErrCodeNotFound,
			Message: "transaction not found",
			Err:     err,
		}
	}
	return tx, nil
}

// ListByUser returns the user's transactions, newest first. The list is
// recomputed on every call.
func (e *Engine) ListByUser(userID string) []*models.PaymentTransaction {
	return e.store.ListByUser(userID)
}

// raiseRiskForChecks floors the risk level based on check verdicts: any
// warning raises it to at least medium, any failure to at least high.
func raiseRiskForChecks(risk models.RiskLevel, results []models.SecurityCheckResult) models.RiskLevel {
	for _, r := range results {
		switch r.Status {
		case models.CheckWarning:
			risk = risk.Max(models.RiskMedium)
		case models.CheckFailed:
			risk = risk.Max(models.RiskHigh)
		}
	}
	return risk
}

func anyFailed(results []models.SecurityCheckResult) bool {
	for _, r := range results {
		if r.Status == models.CheckFailed {
			return true
		}
	}
	return false
}
