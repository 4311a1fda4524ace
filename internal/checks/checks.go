// Package checks implements the pluggable security-check pipeline.
package checks

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/payguard/transaction-engine/internal/models"
)

// Input is the snapshot a check evaluates. Gateway is nil for creation-time
// checks.
type Input struct {
	Transaction        *models.PaymentTransaction
	Gateway            *models.GatewayResult
	RecentTransactions int
}

// Check is a single fraud/risk detector.
type Check interface {
	Name() string
	Evaluate(input Input) models.SecurityCheckResult
}

// Registry holds an ordered list of checks and runs them in sequence.
type Registry struct {
	logger *slog.Logger
	now    func() time.Time
	checks []Check
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Register appends a check to the pipeline. Checks run in registration order.
func (r *Registry) Register(check Check) {
	r.checks = append(r.checks, check)
}

// Run evaluates every registered check against the input. A panicking check
// is recorded as a failed result instead of aborting the pipeline.
func (r *Registry) Run(input Input) []models.SecurityCheckResult {
	results := make([]models.SecurityCheckResult, 0, len(r.checks))
	for _, check := range r.checks {
		result := r.evaluate(check, input)
		result.Type = check.Name()
		result.Timestamp = r.now()
		results = append(results, result)
	}
	return results
}

func (r *Registry) evaluate(check Check, input Input) (result models.SecurityCheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("security check panicked",
				"check", check.Name(),
				"panic", rec,
			)
			result = models.SecurityCheckResult{
				Status:  models.CheckFailed,
				Score:   -50,
				Details: fmt.Sprintf("check failed to execute: %v", rec),
			}
		}
	}()

	return check.Evaluate(input)
}
