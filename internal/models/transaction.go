package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod represents how the customer pays
type PaymentMethod string

const (
	PaymentMethodCreditCard      PaymentMethod = "credit_card"
	PaymentMethodDebitCard       PaymentMethod = "debit_card"
	PaymentMethodUPI             PaymentMethod = "upi"
	PaymentMethodNetBanking      PaymentMethod = "net_banking"
	PaymentMethodWallet          PaymentMethod = "wallet"
	PaymentMethodGatewayRedirect PaymentMethod = "gateway_redirect"
	PaymentMethodCashOnDelivery  PaymentMethod = "cash_on_delivery"
)

// KnownPaymentMethods lists every accepted payment method value.
var KnownPaymentMethods = []PaymentMethod{
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodUPI,
	PaymentMethodNetBanking,
	PaymentMethodWallet,
	PaymentMethodGatewayRedirect,
	PaymentMethodCashOnDelivery,
}

// IsKnown reports whether the method is one of the accepted values.
func (m PaymentMethod) IsKnown() bool {
	for _, known := range KnownPaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// IsCardBased reports whether the method carries card details that need
// PCI-shape validation.
func (m PaymentMethod) IsCardBased() bool {
	return m == PaymentMethodCreditCard || m == PaymentMethodDebitCard
}

// TransactionStatus represents the lifecycle state of a transaction
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
	StatusCancelled  TransactionStatus = "CANCELLED"
	StatusRefunded   TransactionStatus = "REFUNDED"
	StatusDisputed   TransactionStatus = "DISPUTED"
	StatusFrozen     TransactionStatus = "FROZEN"
)

// transitions defines the allowed lifecycle edges. REFUNDED and DISPUTED are
// reachable from COMPLETED via explicit administrative calls only.
var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusFrozen},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusFrozen},
	StatusCompleted:  {StatusRefunded, StatusDisputed},
}

// IsTerminal reports whether the status permits no further automatic
// transitions. COMPLETED allows administrative follow-ups (refund, dispute)
// but counts as terminal for processing purposes.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded, StatusDisputed, StatusFrozen:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// RiskLevel buckets a transaction's fraud exposure
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast reports whether the level is at or above other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return riskRank[r] >= riskRank[other]
}

// Max returns the higher of the two levels.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if riskRank[other] > riskRank[r] {
		return other
	}
	return r
}

// CheckStatus is the verdict of a single security check
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarning CheckStatus = "warning"
	CheckFailed  CheckStatus = "failed"
)

// SecurityCheckResult records one detector's verdict. Results are append-only
// on the owning transaction and never mutated afterwards.
type SecurityCheckResult struct {
	Timestamp time.Time   `json:"timestamp"`
	Type      string      `json:"type"`
	Status    CheckStatus `json:"status"`
	Details   string      `json:"details"`
	Score     int         `json:"score"`
}

// PaymentTransaction is the central entity tracked by the engine
type PaymentTransaction struct {
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	ProcessedAt          *time.Time            `json:"processed_at,omitempty"`
	OrderID              string                `json:"order_id"`
	UserID               string                `json:"user_id"`
	Currency             string                `json:"currency"`
	Method               PaymentMethod         `json:"payment_method"`
	Status               TransactionStatus     `json:"status"`
	RiskLevel            RiskLevel             `json:"risk_level"`
	EncryptedPaymentData string                `json:"-"`
	FailureReason        string                `json:"failure_reason,omitempty"`
	IPAddress            string                `json:"ip_address,omitempty"`
	UserAgent            string                `json:"user_agent,omitempty"`
	DeviceFingerprint    string                `json:"device_fingerprint,omitempty"`
	SecurityChecks       []SecurityCheckResult `json:"security_checks,omitempty"`
	Amount               int64                 `json:"amount"`
	FraudScore           int                   `json:"fraud_score"`
	ID                   uuid.UUID             `json:"id"`
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the store's mutable record.
func (t *PaymentTransaction) Clone() *PaymentTransaction {
	cp := *t
	if t.ProcessedAt != nil {
		ts := *t.ProcessedAt
		cp.ProcessedAt = &ts
	}
	if t.SecurityChecks != nil {
		cp.SecurityChecks = make([]SecurityCheckResult, len(t.SecurityChecks))
		copy(cp.SecurityChecks, t.SecurityChecks)
	}
	return &cp
}

// PaymentInstrument holds the sensitive subset of a payment request. It is
// sealed by the CryptoCodec at creation and never stored in clear.
type PaymentInstrument struct {
	CardNumber    string `json:"card_number,omitempty"`
	CVV           string `json:"cvv,omitempty"`
	UPIID         string `json:"upi_id,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	WalletID      string `json:"wallet_id,omitempty"`
	ExpiryMonth   int    `json:"expiry_month,omitempty"`
	ExpiryYear    int    `json:"expiry_year,omitempty"`
}

// PaymentRequest is the input supplied by the order/checkout collaborator
type PaymentRequest struct {
	OrderID    string            `json:"order_id"`
	UserID     string            `json:"user_id"`
	Currency   string            `json:"currency"`
	Method     PaymentMethod     `json:"payment_method"`
	Instrument PaymentInstrument `json:"instrument"`
	Amount     int64             `json:"amount"`
}

// UserContext captures request provenance at creation time
type UserContext struct {
	IPAddress         string `json:"ip_address"`
	UserAgent         string `json:"user_agent"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

// GatewayStatus is the outcome reported by the payment gateway
type GatewayStatus string

const (
	GatewaySuccess GatewayStatus = "success"
	GatewayFailure GatewayStatus = "failure"
)

// GatewayResult is the payment-gateway collaborator's callback payload
type GatewayResult struct {
	Status        GatewayStatus `json:"status"`
	TransactionID string        `json:"transaction_id"`
	Currency      string        `json:"currency"`
	OrderID       string        `json:"order_id"`
	Error         string        `json:"error,omitempty"`
	Amount        int64         `json:"amount"`
}

// IdempotencyKey tracks processed requests to prevent duplicate transactions
type IdempotencyKey struct {
	CreatedAt      time.Time
	Key            string
	RequestPath    string
	ResponseBody   string
	ResponseStatus int
}
