package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/edu-connect/backend/internal/metrics"
	"github.com/anonto42/edu-connect/backend/internal/router"
	"github.com/anonto42/edu-connect/backend/internal/validators"
	"github.com/anonto42/edu-connect/backend/pkg/config"
	"github.com/anonto42/edu-connect/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	// Initialize Firebase
	stores := router.Stores{Postgres: db.Postgres, Mongo: db.Mongo}
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	switch {
	case err == nil:
		stores.AuthClient = firebaseApp.AuthClient
	case errors.Is(err, firebase.ErrNotConfigured) && !cfg.IsProduction():
		log.Println("Firebase not configured, continuing without it.")
	default:
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e, logger)

	// Setup routes and dependencies
	m := metrics.New()
	if err := router.SetupRoutes(ctx, e, cfg, stores, logger, m); err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	metricsServer := router.NewMetricsServer(cfg.MetricsPort, m)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
}
