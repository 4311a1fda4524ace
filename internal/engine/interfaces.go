package engine

import (
	"github.com/google/uuid"

	"github.com/payguard/transaction-engine/internal/models"
)

// TransactionEngine is the surface handlers and collaborators program
// against.
type TransactionEngine interface {
	Validate(req models.PaymentRequest, userCtx models.UserContext) ValidationResult
	Create(req models.PaymentRequest, userCtx models.UserContext) (*models.PaymentTransaction, error)
	Process(id uuid.UUID, gateway models.GatewayResult) (*models.PaymentTransaction, error)
	GetStatus(id uuid.UUID) (*models.PaymentTransaction, error)
	ListByUser(userID string) []*models.PaymentTransaction
	Refund(id uuid.UUID) (*models.PaymentTransaction, error)
	Dispute(id uuid.UUID) (*models.PaymentTransaction, error)
	Freeze(id uuid.UUID, reason string) (*models.PaymentTransaction, error)
}

// Ensure the concrete type implements the interface
var _ TransactionEngine = (*Engine)(nil)
