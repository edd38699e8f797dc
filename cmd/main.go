package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/half-paul/donations2.0-sub001/internal/bootstrap"
	"github.com/half-paul/donations2.0-sub001/internal/config"
	cronpkg "github.com/half-paul/donations2.0-sub001/internal/cron"
	"github.com/half-paul/donations2.0-sub001/internal/dedup"
	"github.com/half-paul/donations2.0-sub001/internal/processor"
	"github.com/half-paul/donations2.0-sub001/internal/repository"
	"github.com/half-paul/donations2.0-sub001/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Server.Env == "development" {
		if dev, devErr := zap.NewDevelopment(); devErr == nil {
			logger = dev
		}
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// --- Payment processors ---
	registry := processor.NewRegistry(cfg.Processors.ProcessorConfig(), logger)
	retryer := processor.NewRetryer(processor.DefaultRetryPolicy(), logger)
	logger.Info("Payment processors configured",
		zap.Strings("processors", registry.Configured()))

	// --- Webhook event deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := dedup.New(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, 72*time.Hour)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for webhook dedup, using in-memory fallback",
			zap.Error(dedupeErr))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, db, registry, retryer, deduper, logger, cfg.Server.APIKey)

	// --- Cron scheduler ---
	cronRepos := &cronpkg.CronRepos{
		Donation: repository.NewDonationRepository(db),
		Plan:     repository.NewRecurringPlanRepository(db),
	}
	scheduler := cronpkg.New(registry, retryer, cronRepos, logger)
	scheduler.Start()

	// --- Start server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting donation server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
