package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/payguard/transaction-engine/internal/checks"
	"github.com/payguard/transaction-engine/internal/config"
	"github.com/payguard/transaction-engine/internal/crypto"
	"github.com/payguard/transaction-engine/internal/engine"
	"github.com/payguard/transaction-engine/internal/events"
	"github.com/payguard/transaction-engine/internal/fraud"
	"github.com/payguard/transaction-engine/internal/handlers"
	"github.com/payguard/transaction-engine/internal/housekeeper"
	"github.com/payguard/transaction-engine/internal/models"
	"github.com/payguard/transaction-engine/internal/notify"
	"github.com/payguard/transaction-engine/internal/ratelimit"
	"github.com/payguard/transaction-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting transaction engine",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	codec, err := buildCodec(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize payment data codec", "error", err)
		os.Exit(1)
	}

	txStore := store.New(codec)
	limiter := ratelimit.New(cfg.Security.RateLimitWindow)
	scorer := fraud.NewScorer(limiter, cfg.Security.FraudDetectionThreshold)
	bus := events.NewBus(logger)
	dispatcher := notify.NewLogDispatcher(logger)

	eng := engine.New(
		&cfg.Security,
		txStore,
		limiter,
		scorer,
		checks.DefaultCreationRegistry(logger, cfg.Security.VelocityThreshold, cfg.Security.FraudDetectionThreshold),
		checks.DefaultProcessingRegistry(logger),
		bus,
		dispatcher,
		logger,
	)

	// Observer collaborators subscribe here; by default every state change
	// is logged.
	unsubscribe := bus.Subscribe(func(tx *models.PaymentTransaction) {
		logger.Debug("transaction state changed",
			"transaction_id", tx.ID,
			"status", tx.Status,
			"risk_level", tx.RiskLevel,
		)
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keeper := housekeeper.New(txStore, bus, limiter, &cfg.Security, &cfg.Housekeeping, logger)
	go keeper.Run(ctx)

	router, err := handlers.NewRouter(eng, store.NewIdempotencyStore(), logger)
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func buildCodec(cfg *config.Config, logger *slog.Logger) (crypto.Codec, error) {
	if key := cfg.Crypto.Key(); key != nil {
		return crypto.NewAEADCodec(key)
	}

	logger.Warn("no payment data key configured; using an ephemeral key, sealed data will not survive a restart")
	return crypto.NewEphemeralCodec()
}
