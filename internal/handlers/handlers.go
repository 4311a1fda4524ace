// Package handlers implements the HTTP surface over the transaction engine.
package handlers

import (
	"log/slog"

	"github.com/payguard/transaction-engine/internal/engine"
)

// Handler serves the transaction API
type Handler struct {
	engine engine.TransactionEngine
	logger *slog.Logger
}

// NewHandler creates a new Handler with injected dependencies.
func NewHandler(eng engine.TransactionEngine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: eng,
		logger: logger,
	}
}
