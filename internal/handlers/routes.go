package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/payguard/transaction-engine/internal/api"
	"github.com/payguard/transaction-engine/internal/engine"
	"github.com/payguard/transaction-engine/internal/middleware"
	"github.com/payguard/transaction-engine/internal/store"
)

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	eng engine.TransactionEngine,
	idemStore *store.IdempotencyStore,
	logger *slog.Logger,
) (http.Handler, error) {
	handler := NewHandler(eng, logger)

	mux := http.NewServeMux()
	api.RegisterDocsRoutes(mux)

	mux.HandleFunc("GET /health", handler.GetHealth)
	mux.HandleFunc("POST /api/v1/transactions", handler.CreateTransaction)
	mux.HandleFunc("GET /api/v1/transactions/{transactionId}", handler.GetTransaction)
	mux.HandleFunc("POST /api/v1/transactions/{transactionId}/process", handler.ProcessTransaction)
	mux.HandleFunc("POST /api/v1/transactions/{transactionId}/refund", handler.RefundTransaction)
	mux.HandleFunc("POST /api/v1/transactions/{transactionId}/dispute", handler.DisputeTransaction)
	mux.HandleFunc("POST /api/v1/transactions/{transactionId}/freeze", handler.FreezeTransaction)
	mux.HandleFunc("GET /api/v1/users/{userId}/transactions", handler.ListUserTransactions)
	mux.HandleFunc("GET /api/v1/admin/transactions/{transactionId}", handler.GetAdminTransaction)

	doc, err := api.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}

	validate, err := middleware.OpenAPIValidation(doc, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build validation middleware: %w", err)
	}

	var finalHandler http.Handler = mux
	finalHandler = validate(finalHandler)
	finalHandler = middleware.Idempotency(idemStore, logger)(finalHandler)

	return finalHandler, nil
}
