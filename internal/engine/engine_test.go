package engine

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payguard/transaction-engine/internal/checks"
	"github.com/payguard/transaction-engine/internal/config"
	"github.com/payguard/transaction-engine/internal/crypto"
	"github.com/payguard/transaction-engine/internal/events"
	"github.com/payguard/transaction-engine/internal/fraud"
	"github.com/payguard/transaction-engine/internal/models"
	"github.com/payguard/transaction-engine/internal/notify"
	"github.com/payguard/transaction-engine/internal/ratelimit"
	"github.com/payguard/transaction-engine/internal/store"
)

// recordingDispatcher captures notification intents for assertions.
type recordingDispatcher struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (d *recordingDispatcher) Dispatch(n notify.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notes = append(d.notes, n)
}

func (d *recordingDispatcher) all() []notify.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Notification(nil), d.notes...)
}

type testHarness struct {
	engine     *Engine
	limiter    *ratelimit.Limiter
	store      store.TransactionStore
	bus        *events.Bus
	dispatcher *recordingDispatcher
	clock      *fakeClock
	published  *[]models.TransactionStatus
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		AllowedCurrencies:       []string{"INR", "USD", "EUR", "GBP"},
		MinAmount:               1,
		MaxAmount:               1_000_000,
		FraudDetectionThreshold: 10_000,
		HighValueThreshold:      50_000,
		MaxAttempts:             3,
		VelocityThreshold:       5,
		RateLimitWindow:         10 * time.Minute,
		PaymentTimeout:          5 * time.Minute,
	}
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testSecurityConfig()
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}

	codec, err := crypto.NewEphemeralCodec()
	require.NoError(t, err)

	limiter := ratelimit.New(cfg.RateLimitWindow)
	limiter.SetClock(clock.Now)

	creation := checks.DefaultCreationRegistry(logger, cfg.VelocityThreshold, cfg.FraudDetectionThreshold)
	creation.SetClock(clock.Now)
	processing := checks.DefaultProcessingRegistry(logger)
	processing.SetClock(clock.Now)

	txStore := store.New(codec)
	bus := events.NewBus(logger)
	dispatcher := &recordingDispatcher{}
	scorer := fraud.NewScorer(limiter, cfg.FraudDetectionThreshold)

	eng := New(cfg, txStore, limiter, scorer, creation, processing, bus, dispatcher, logger)
	eng.SetClock(clock.Now)

	published := &[]models.TransactionStatus{}
	bus.Subscribe(func(tx *models.PaymentTransaction) {
		*published = append(*published, tx.Status)
	})

	return &testHarness{
		engine:     eng,
		limiter:    limiter,
		store:      txStore,
		bus:        bus,
		dispatcher: dispatcher,
		clock:      clock,
		published:  published,
	}
}

func validRequest(userID string, amount int64) models.PaymentRequest {
	return models.PaymentRequest{
		OrderID:  "order-1",
		UserID:   userID,
		Amount:   amount,
		Currency: "INR",
		Method:   models.PaymentMethodCreditCard,
		Instrument: models.PaymentInstrument{
			CardNumber:  "4532015112830366",
			CVV:         "123",
			ExpiryMonth: 12,
			ExpiryYear:  2030,
		},
	}
}

func matchingGateway(tx *models.PaymentTransaction) models.GatewayResult {
	return models.GatewayResult{
		Status:        models.GatewaySuccess,
		TransactionID: tx.ID.String(),
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		OrderID:       tx.OrderID,
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		h := newTestHarness(t)

		result := h.engine.Validate(validRequest("user-1", 500), models.UserContext{})

		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
		assert.Empty(t, result.Warnings)
		assert.Equal(t, models.RiskLow, result.RiskLevel)
	})

	t.Run("collects one error per violation", func(t *testing.T) {
		h := newTestHarness(t)

		req := validRequest("user-1", 500)
		req.Currency = "JPY"
		req.Method = "bitcoin"
		req.Amount = 0

		result := h.engine.Validate(req, models.UserContext{})

		assert.False(t, result.Valid)
		assert.Len(t, result.Errors, 3)
	})

	t.Run("card shape violations are distinct errors", func(t *testing.T) {
		h := newTestHarness(t)

		req := validRequest("user-1", 500)
		req.Instrument.CardNumber = "1234567890123456"
		req.Instrument.CVV = "12"
		req.Instrument.ExpiryYear = 2020

		result := h.engine.Validate(req, models.UserContext{})

		assert.False(t, result.Valid)
		assert.Len(t, result.Errors, 3)
	})

	t.Run("card shape is not checked for non-card methods", func(t *testing.T) {
		h := newTestHarness(t)

		req := validRequest("user-1", 500)
		req.Method = models.PaymentMethodUPI
		req.Instrument = models.PaymentInstrument{UPIID: "user@bank"}

		result := h.engine.Validate(req, models.UserContext{})

		assert.True(t, result.Valid)
	})

	t.Run("high value adds a warning and floors risk at high", func(t *testing.T) {
		h := newTestHarness(t)

		result := h.engine.Validate(validRequest("user-1", 60_000), models.UserContext{})

		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.True(t, result.RiskLevel.AtLeast(models.RiskHigh))
	})

	t.Run("rate limited user is invalid", func(t *testing.T) {
		h := newTestHarness(t)

		for range 3 {
			h.limiter.RecordAttempt("user-1")
		}

		result := h.engine.Validate(validRequest("user-1", 500), models.UserContext{})

		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "too many payment attempts")
	})

	t.Run("does not mutate limiter state", func(t *testing.T) {
		h := newTestHarness(t)

		h.engine.Validate(validRequest("user-1", 500), models.UserContext{})
		h.engine.Validate(validRequest("user-1", 500), models.UserContext{})

		assert.Equal(t, 0, h.limiter.Attempts("user-1"))
	})
}

func TestCreate(t *testing.T) {
	t.Run("creates a pending transaction with creation checks", func(t *testing.T) {
		h := newTestHarness(t)
		userCtx := models.UserContext{
			IPAddress:         "203.0.113.7",
			UserAgent:         "test-agent",
			DeviceFingerprint: "fp-1",
		}

		tx, err := h.engine.Create(validRequest("user-1", 500), userCtx)
		require.NoError(t, err)

		assert.Equal(t, models.StatusPending, tx.Status)
		assert.Equal(t, models.RiskLow, tx.RiskLevel)
		assert.Equal(t, 100, tx.FraudScore)
		assert.Equal(t, "203.0.113.7", tx.IPAddress)
		assert.NotEmpty(t, tx.EncryptedPaymentData)

		require.Len(t, tx.SecurityChecks, 3)
		assert.Equal(t, "ip_reputation", tx.SecurityChecks[0].Type)
		assert.Equal(t, "velocity_check", tx.SecurityChecks[1].Type)
		assert.Equal(t, "amount_analysis", tx.SecurityChecks[2].Type)

		assert.Equal(t, 1, h.limiter.Attempts("user-1"))
		assert.Equal(t, 1, h.limiter.RecentTransactions("user-1"))
		assert.Equal(t, []models.TransactionStatus{models.StatusPending}, *h.published)
		assert.Empty(t, h.dispatcher.all())
	})

	t.Run("high-value first-time transaction is high risk and alerts admins", func(t *testing.T) {
		h := newTestHarness(t)

		tx, err := h.engine.Create(validRequest("user-1", 15_000), models.UserContext{})
		require.NoError(t, err)

		assert.Equal(t, models.StatusPending, tx.Status)
		assert.Equal(t, models.RiskHigh, tx.RiskLevel)
		assert.Equal(t, 80, tx.FraudScore)

		notes := h.dispatcher.all()
		require.Len(t, notes, 1)
		assert.Equal(t, AdminAudience, notes[0].UserID)
		assert.Equal(t, notify.PriorityUrgent, notes[0].Priority)
		assert.Equal(t, tx.ID.String(), notes[0].Metadata["transaction_id"])
	})

	t.Run("sixth transaction in the window trips the velocity check", func(t *testing.T) {
		h := newTestHarness(t)

		for range 5 {
			h.limiter.RecordTransaction("user-1")
		}

		tx, err := h.engine.Create(validRequest("user-1", 500), models.UserContext{})
		require.NoError(t, err)

		var velocity *models.SecurityCheckResult
		for i := range tx.SecurityChecks {
			if tx.SecurityChecks[i].Type == "velocity_check" {
				velocity = &tx.SecurityChecks[i]
			}
		}
		require.NotNil(t, velocity)
		assert.Equal(t, models.CheckWarning, velocity.Status)
		assert.True(t, tx.RiskLevel.AtLeast(models.RiskMedium))
	})

	t.Run("fourth attempt in the window is rejected", func(t *testing.T) {
		h := newTestHarness(t)

		for range 3 {
			_, err := h.engine.Create(validRequest("user-1", 500), models.UserContext{})
			require.NoError(t, err)
		}

		_, err := h.engine.Create(validRequest("user-1", 500), models.UserContext{})
		require.Error(t, err)

		var engErr *EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, ErrCodeRateLimited, engErr.Code)
	})

	t.Run("attempts reset after the window elapses", func(t *testing.T) {
		h := newTestHarness(t)

		for range 3 {
			_, err := h.engine.Create(validRequest("user-1", 500), models.UserContext{})
			require.NoError(t, err)
		}

		h.clock.Advance(11 * time.Minute)

		_, err := h.engine.Create(validRequest("user-1", 500), models.UserContext{})
		assert.NoError(t, err)
	})

	t.Run("invalid request is rejected without side effects", func(t *testing.T) {
		h := newTestHarness(t)

		req := validRequest("user-1", 500)
		req.Currency = "JPY"

		_, err := h.engine.Create(req, models.UserContext{})
		require.Error(t, err)

		var engErr *EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, ErrCodeValidation, engErr.Code)

		assert.Equal(t, 0, h.limiter.Attempts("user-1"))
		assert.Empty(t, h.engine.ListByUser("user-1"))
		assert.Empty(t, *h.published)
	})
}

func TestProcess(t *testing.T) {
	t.Run("matching success completes the transaction", func(t *testing.T) {
		h := newTestHarness(t)
		tx, err := h.engine.Create(validRequest("user-1", 1500), models.UserContext{})
		require.NoError(t, err)

		final, err := h.engine.Process(tx.ID, matchingGateway(tx))
		require.NoError(t, err)

		assert.Equal(t, models.StatusCompleted, final.Status)
		require.NotNil(t, final.ProcessedAt)
		assert.Empty(t, final.FailureReason)

		// Creation checks plus the two processing checks.
		require.Len(t, final.SecurityChecks, 5)
		assert.Equal(t, "gateway_validation", final.SecurityChecks[3].Type)
		assert.Equal(t, models.CheckPassed, final.SecurityChecks[3].Status)
		assert.Equal(t, "integrity_check", final.SecurityChecks[4].Type)
		assert.Equal(t, models.CheckPassed, final.SecurityChecks[4].Status)

		assert.Equal(t, []models.TransactionStatus{
			models.StatusPending,
			models.StatusProcessing,
			models.StatusCompleted,
		}, *h.published)

		notes := h.dispatcher.all()
		require.Len(t, notes, 1)
		assert.Equal(t, "user-1", notes[0].UserID)
		assert.Equal(t, "Payment successful", notes[0].Title)
	})

	t.Run("tampered amount fails the integrity check", func(t *testing.T) {
		h := newTestHarness(t)
		tx, err := h.engine.Create(validRequest("user-1", 1500), models.UserContext{})
		require.NoError(t, err)

		gateway := matchingGateway(tx)
		gateway.Amount = tx.Amount + 1

		final, err := h.engine.Process(tx.ID, gateway)
		require.NoError(t, err)

		assert.Equal(t, models.StatusFailed, final.Status)
		assert.Equal(t, "security checks failed", final.FailureReason)
		assert.Nil(t, final.ProcessedAt)

		assert.Equal(t, "integrity_check", final.SecurityChecks[4].Type)
		assert.Equal(t, models.CheckFailed, final.SecurityChecks[4].Status)

		notes := h.dispatcher.all()
		require.Len(t, notes, 1)
		assert.Equal(t, "Payment failed", notes[0].Title)
	})

	t.Run("gateway failure records the gateway error", func(t *testing.T) {
		h := newTestHarness(t)
		tx, err := h.engine.Create(validRequest("user-1", 1500), models.UserContext{})
		require.NoError(t, err)

		gateway := matchingGateway(tx)
		gateway.Status = models.GatewayFailure
		gateway.Error = "card declined"

		final, err := h.engine.Process(tx.ID, gateway)
		require.NoError(t, err)

		assert.Equal(t, models.StatusFailed, final.Status)
		assert.Equal(t, "card declined", final.FailureReason)
	})

	t.Run("unknown ID", func(t *testing.T) {
		h := newTestHarness(t)

		_, err := h.engine.Process(uuid.New(), models.GatewayResult{})
		require.Error(t, err)

		var engErr *EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, ErrCodeNotFound, engErr.Code)
	})

	t.Run("terminal transactions cannot be processed again", func(t *testing.T) {
		h := newTestHarness(t)
		tx, err := h.engine.Create(validRequest("user-1", 1500), models.UserContext{})
		require.NoError(t, err)

		_, err = h.engine.Process(tx.ID, matchingGateway(tx))
		require.NoError(t, err)

		_, err = h.engine.Process(tx.ID, matchingGateway(tx))
		require.Error(t, err)

		var engErr *EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, ErrCodeInvalidState, engErr.Code)

		// No second round of checks ran.
		final, err := h.engine.GetStatus(tx.ID)
		require.NoError(t, err)
		assert.Len(t, final.SecurityChecks, 5)
	})

	t.Run("concurrent process on the same ID is rejected", func(t *testing.T) {
		h := newTestHarness(t)
		tx, err := h.engine.Create(validRequest("user-1", 1500), models.UserContext{})
		require.NoError(t, err)

		require.NoError(t, h.engine.acquire(tx.ID))
		defer h.engine.release(tx.ID)

		_, err = h.engine.Process(tx.ID, matchingGateway(tx))
		require.Error(t, err)

		var engErr *EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, ErrCodeInvalidState, engErr.Code)
	})
}

func TestGetStatus(t *testing.T) {
	t.Run("repeated reads are identical", func(t *testing.T) {
		h := newTestHarness(t)
		tx, err := h.engine.Create(validRequest("user-1", 1500), models.UserContext{})
		require.NoError(t, err)

		first, err := h.engine.GetStatus(tx.ID)
		require.NoError(t, err)
		second, err := h.engine.GetStatus(tx.ID)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("unknown ID", func(t *testing.T) {
		h := newTestHarness(t)

		_, err := h.engine.GetStatus(uuid.New())
		require.Error(t, err)

		var engErr *EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, ErrCodeNotFound, engErr.Code)
	})
}

func TestListByUser(t *testing.T) {
	h := newTestHarness(t)

	first, err := h.engine.Create(validRequest("user-1", 500), models.UserContext{})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	second, err := h.engine.Create(validRequest("user-1", 700), models.UserContext{})
	require.NoError(t, err)

	list := h.engine.ListByUser("user-1")
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestAdminTransitions(t *testing.T) {
	t.Run("refund and dispute require a completed transaction", func(t *testing.T) {
		h := newTestHarness(t)
		tx, err := h.engine.Create(validRequest("user-1", 1500), models.UserContext{})
		require.NoError(t, err)

		_, err = h.engine.Refund(tx.ID)
		require.Error(t, err)
		var engErr *EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, ErrCodeInvalidState, engErr.Code)

		_, err = h.engine.Process(tx.ID, matchingGateway(tx))
		require.NoError(t, err)

		refunded, err := h.engine.Refund(tx.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRefunded, refunded.Status)

		// REFUNDED is terminal.
		_, err = h.engine.Dispute(tx.ID)
		assert.Error(t, err)
	})

	t.Run("freeze holds a pending transaction", func(t *testing.T) {
		h := newTestHarness(t)
		tx, err := h.engine.Create(validRequest("user-1", 1500), models.UserContext{})
		require.NoError(t, err)

		frozen, err := h.engine.Freeze(tx.ID, "manual review")
		require.NoError(t, err)
		assert.Equal(t, models.StatusFrozen, frozen.Status)
		assert.Equal(t, "manual review", frozen.FailureReason)

		_, err = h.engine.Process(tx.ID, matchingGateway(tx))
		require.Error(t, err)

		var engErr *EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, ErrCodeInvalidState, engErr.Code)
	})
}
