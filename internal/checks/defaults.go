package checks

import (
	"fmt"
	"log/slog"

	"github.com/payguard/transaction-engine/internal/models"
)

// DefaultCreationRegistry builds the pipeline run when a transaction is
// created.
func DefaultCreationRegistry(logger *slog.Logger, velocityThreshold int, fraudThreshold int64) *Registry {
	r := NewRegistry(logger)
	r.Register(IPReputation{})
	r.Register(Velocity{Threshold: velocityThreshold})
	r.Register(AmountAnalysis{Threshold: fraudThreshold})
	return r
}

// DefaultProcessingRegistry builds the pipeline run against the gateway
// result.
func DefaultProcessingRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(GatewayValidation{})
	r.Register(Integrity{})
	return r
}

// IPReputation is a placeholder detector that passes every address. It exists
// as the extension point for a real reputation feed.
type IPReputation struct{}

func (IPReputation) Name() string { return "ip_reputation" }

func (IPReputation) Evaluate(input Input) models.SecurityCheckResult {
	return models.SecurityCheckResult{
		Status:  models.CheckPassed,
		Score:   10,
		Details: fmt.Sprintf("IP address %s has no negative reputation", input.Transaction.IPAddress),
	}
}

// Velocity flags users creating transactions faster than the suspicious
// threshold inside the rate-limit window.
type Velocity struct {
	Threshold int
}

func (Velocity) Name() string { return "velocity_check" }

func (c Velocity) Evaluate(input Input) models.SecurityCheckResult {
	if input.RecentTransactions >= c.Threshold {
		return models.SecurityCheckResult{
			Status:  models.CheckWarning,
			Score:   -20,
			Details: fmt.Sprintf("suspicious velocity: %d transactions in window (threshold %d)", input.RecentTransactions, c.Threshold),
		}
	}
	return models.SecurityCheckResult{
		Status:  models.CheckPassed,
		Score:   10,
		Details: fmt.Sprintf("normal velocity: %d transactions in window", input.RecentTransactions),
	}
}

// AmountAnalysis flags amounts above the fraud-detection threshold.
type AmountAnalysis struct {
	Threshold int64
}

func (AmountAnalysis) Name() string { return "amount_analysis" }

func (c AmountAnalysis) Evaluate(input Input) models.SecurityCheckResult {
	if input.Transaction.Amount > c.Threshold {
		return models.SecurityCheckResult{
			Status:  models.CheckWarning,
			Score:   -10,
			Details: fmt.Sprintf("amount %d exceeds fraud detection threshold %d", input.Transaction.Amount, c.Threshold),
		}
	}
	return models.SecurityCheckResult{
		Status:  models.CheckPassed,
		Score:   5,
		Details: "amount within normal range",
	}
}

// GatewayValidation verifies the gateway reported a successful charge.
type GatewayValidation struct{}

func (GatewayValidation) Name() string { return "gateway_validation" }

func (GatewayValidation) Evaluate(input Input) models.SecurityCheckResult {
	if input.Gateway == nil || input.Gateway.Status != models.GatewaySuccess {
		details := "gateway reported failure"
		if input.Gateway != nil && input.Gateway.Error != "" {
			details = fmt.Sprintf("gateway reported failure: %s", input.Gateway.Error)
		}
		return models.SecurityCheckResult{
			Status:  models.CheckFailed,
			Score:   -50,
			Details: details,
		}
	}
	return models.SecurityCheckResult{
		Status:  models.CheckPassed,
		Score:   20,
		Details: "gateway reported success",
	}
}

// Integrity verifies the gateway echoed the stored amount, currency and order
// reference exactly, as a tamper check on the callback.
type Integrity struct{}

func (Integrity) Name() string { return "integrity_check" }

func (Integrity) Evaluate(input Input) models.SecurityCheckResult {
	tx := input.Transaction
	gw := input.Gateway

	if gw == nil {
		return models.SecurityCheckResult{
			Status:  models.CheckFailed,
			Score:   -30,
			Details: "no gateway result to verify",
		}
	}

	var mismatches []string
	if gw.Amount != tx.Amount {
		mismatches = append(mismatches, fmt.Sprintf("amount %d != %d", gw.Amount, tx.Amount))
	}
	if gw.Currency != tx.Currency {
		mismatches = append(mismatches, fmt.Sprintf("currency %s != %s", gw.Currency, tx.Currency))
	}
	if gw.OrderID != tx.OrderID {
		mismatches = append(mismatches, fmt.Sprintf("order %s != %s", gw.OrderID, tx.OrderID))
	}

	if len(mismatches) > 0 {
		details := "gateway response does not match transaction:"
		for _, m := range mismatches {
			details += " " + m + ";"
		}
		return models.SecurityCheckResult{
			Status:  models.CheckFailed,
			Score:   -30,
			Details: details,
		}
	}

	return models.SecurityCheckResult{
		Status:  models.CheckPassed,
		Score:   15,
		Details: "gateway response matches transaction",
	}
}
