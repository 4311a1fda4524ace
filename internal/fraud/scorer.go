// Package fraud computes fraud scores and risk levels for payment requests.
package fraud

import (
	"github.com/payguard/transaction-engine/internal/models"
	"github.com/payguard/transaction-engine/internal/ratelimit"
)

// Scorer derives a 0-100 fraud score (higher is safer) and a risk bucket from
// request attributes and the user's recent activity.
type Scorer struct {
	limiter   *ratelimit.Limiter
	threshold int64
}

// NewScorer creates a Scorer. threshold is the fraud-detection amount above
// which a transaction is considered suspicious.
func NewScorer(limiter *ratelimit.Limiter, threshold int64) *Scorer {
	return &Scorer{
		limiter:   limiter,
		threshold: threshold,
	}
}

// Score computes the fraud score for a request. The baseline is 100;
// deductions apply for large amounts, prior attempts and recent velocity.
// The result is clamped to [0, 100].
func (s *Scorer) Score(userID string, amount int64) int {
	score := 100

	if amount > s.threshold {
		score -= 20
	}
	score -= 10 * s.limiter.Attempts(userID)
	score -= 5 * s.limiter.RecentTransactions(userID)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// RiskFor maps a fraud score and amount onto a risk level. Rules evaluate in
// order; the first match wins.
func (s *Scorer) RiskFor(score int, amount int64) models.RiskLevel {
	switch {
	case score < 30 || amount > 2*s.threshold:
		return models.RiskCritical
	case score < 50 || amount > s.threshold:
		return models.RiskHigh
	case score < 70:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}
