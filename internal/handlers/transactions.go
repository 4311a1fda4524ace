package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/payguard/transaction-engine/internal/models"
)

// CreateTransaction handles POST /api/v1/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "malformed request body")
		return
	}

	tx, err := h.engine.Create(req, userContextFrom(r))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, publicView(tx))
}

// ProcessTransaction handles POST /api/v1/transactions/{transactionId}/process
func (h *Handler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseTransactionID(r)
	if err != nil {
		h.writeBadRequest(w, "invalid transaction ID")
		return
	}

	var gateway models.GatewayResult
	if err := json.NewDecoder(r.Body).Decode(&gateway); err != nil {
		h.writeBadRequest(w, "malformed gateway result")
		return
	}

	tx, err := h.engine.Process(id, gateway)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, publicView(tx))
}

// GetTransaction handles GET /api/v1/transactions/{transactionId}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseTransactionID(r)
	if err != nil {
		h.writeBadRequest(w, "invalid transaction ID")
		return
	}

	tx, err := h.engine.GetStatus(id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, publicView(tx))
}

// ListUserTransactions handles GET /api/v1/users/{userId}/transactions
func (h *Handler) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		h.writeBadRequest(w, "missing user ID")
		return
	}

	transactions := h.engine.ListByUser(userID)
	views := make([]transactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		views = append(views, publicView(tx))
	}

	h.writeJSON(w, http.StatusOK, views)
}

// GetAdminTransaction handles GET /api/v1/admin/transactions/{transactionId}.
// It exposes fraud score, provenance and the full check trail.
func (h *Handler) GetAdminTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseTransactionID(r)
	if err != nil {
		h.writeBadRequest(w, "invalid transaction ID")
		return
	}

	tx, err := h.engine.GetStatus(id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, adminView(tx))
}

// RefundTransaction handles POST /api/v1/transactions/{transactionId}/refund
func (h *Handler) RefundTransaction(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.engine.Refund)
}

// DisputeTransaction handles POST /api/v1/transactions/{transactionId}/dispute
func (h *Handler) DisputeTransaction(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, h.engine.Dispute)
}

// FreezeTransaction handles POST /api/v1/transactions/{transactionId}/freeze
func (h *Handler) FreezeTransaction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	// An empty body is allowed; the engine supplies a default reason.
	_ = json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck

	h.adminTransition(w, r, func(id uuid.UUID) (*models.PaymentTransaction, error) {
		return h.engine.Freeze(id, body.Reason)
	})
}
