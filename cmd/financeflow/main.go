package main

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financeflow/internal/auth"
	"financeflow/internal/backend"
	"financeflow/internal/bank"
	"financeflow/internal/config"
	apphttp "financeflow/internal/http"
	"financeflow/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	result, err := backend.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer result.Close()

	provider, err := bank.NewProvider(cfg.BankProvider, rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
	if err != nil {
		logger.Error("Failed to initialize bank provider", "error", err, "provider", cfg.BankProvider)
		os.Exit(1)
	}

	var events services.LedgerEventPublisher
	if result.Events != nil {
		events = result.Events
	}

	analytics := services.NewAnalyticsService(result.Store)
	importer := services.NewImportService(result.Store, events)
	syncSvc := services.NewSyncService(provider, importer, result.Store, cfg.SyncDaysBack)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret)

	srv := apphttp.NewServer(":"+cfg.Port, result.Store, analytics, importer, syncSvc, tokens)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting financeflow server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"provider", cfg.BankProvider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
