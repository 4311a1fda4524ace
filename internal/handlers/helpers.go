package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/payguard/transaction-engine/internal/engine"
	"github.com/payguard/transaction-engine/internal/models"
)

// errorResponse is the wire shape of every error the API returns
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// transactionResponse is the public view of a transaction. Fraud detail and
// provenance are withheld from end users.
type transactionResponse struct {
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	UserID        string     `json:"user_id"`
	Currency      string     `json:"currency"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Amount        int64      `json:"amount"`
}

// adminTransactionResponse is the full view served to administrative
// observers only.
type adminTransactionResponse struct {
	transactionResponse
	RiskLevel         string                       `json:"risk_level"`
	IPAddress         string                       `json:"ip_address,omitempty"`
	UserAgent         string                       `json:"user_agent,omitempty"`
	DeviceFingerprint string                       `json:"device_fingerprint,omitempty"`
	SecurityChecks    []models.SecurityCheckResult `json:"security_checks,omitempty"`
	FraudScore        int                          `json:"fraud_score"`
}

func publicView(tx *models.PaymentTransaction) transactionResponse {
	return transactionResponse{
		ID:            tx.ID.String(),
		OrderID:       tx.OrderID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		PaymentMethod: string(tx.Method),
		Status:        string(tx.Status),
		FailureReason: tx.FailureReason,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
		ProcessedAt:   tx.ProcessedAt,
	}
}

func adminView(tx *models.PaymentTransaction) adminTransactionResponse {
	return adminTransactionResponse{
		transactionResponse: publicView(tx),
		RiskLevel:           string(tx.RiskLevel),
		FraudScore:          tx.FraudScore,
		IPAddress:           tx.IPAddress,
		UserAgent:           tx.UserAgent,
		DeviceFingerprint:   tx.DeviceFingerprint,
		SecurityChecks:      tx.SecurityChecks,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeEngineError maps an engine error to an HTTP status and body.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var engErr *engine.EngineError
	if !errors.As(err, &engErr) {
		h.logger.Error("unexpected error", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   engine.ErrCodeInternal,
			Message: "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch engErr.Code {
	case engine.ErrCodeValidation:
		status = http.StatusBadRequest
	case engine.ErrCodeRateLimited:
		status = http.StatusTooManyRequests
	case engine.ErrCodeNotFound:
		status = http.StatusNotFound
	case engine.ErrCodeInvalidState:
		status = http.StatusConflict
	}

	h.writeJSON(w, status, errorResponse{
		Error:   engErr.Code,
		Message: engErr.Message,
	})
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   engine.ErrCodeValidation,
		Message: message,
	})
}

func parseTransactionID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("transactionId"))
}

// adminTransition runs an administrative state change and writes the full
// (administrative) view of the result.
func (h *Handler) adminTransition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(id uuid.UUID) (*models.PaymentTransaction, error),
) {
	id, err := parseTransactionID(r)
	if err != nil {
		h.writeBadRequest(w, "invalid transaction ID")
		return
	}

	tx, err := apply(id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, adminView(tx))
}

// userContextFrom captures request provenance for the engine.
func userContextFrom(r *http.Request) models.UserContext {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		// First hop in the chain is the client.
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}

	return models.UserContext{
		IPAddress:         ip,
		UserAgent:         r.UserAgent(),
		DeviceFingerprint: r.Header.Get("X-Device-Fingerprint"),
	}
}
