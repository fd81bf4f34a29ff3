package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/cors"

	"github.com/privebank/ledger/internal/audit"
	"github.com/privebank/ledger/internal/auth"
	"github.com/privebank/ledger/internal/config"
	"github.com/privebank/ledger/internal/dashboard"
	"github.com/privebank/ledger/internal/database"
	"github.com/privebank/ledger/internal/handlers"
	"github.com/privebank/ledger/internal/jobs"
	"github.com/privebank/ledger/internal/ledger"
	"github.com/privebank/ledger/internal/logger"
	"github.com/privebank/ledger/internal/middleware"
	"github.com/privebank/ledger/internal/repository"
	"github.com/privebank/ledger/internal/router"
	"github.com/privebank/ledger/internal/services"
)

const (
	storeTimeout    = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	opsLog, opsCloser := logger.NewOps(logger.Options{
		Level:      cfg.LogLevel,
		OpsFile:    cfg.OpsLogFile,
		MaxSizeMB:  cfg.OpsLogMaxSizeMB,
		MaxBackups: cfg.OpsLogMaxBackups,
		MaxAgeDays: cfg.OpsLogMaxAgeDays,
	})
	defer opsCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL")

	if err := database.Migrate(ctx, pool, log); err != nil {
		slog.Error("Migrations failed", "error", err)
		os.Exit(1)
	}

	// Storage
	accountRepo := repository.NewAccountRepo(pool)
	txnRepo := repository.NewTransactionRepo(pool)
	auditRepo := repository.NewAuditRepo(pool)
	store := ledger.NewStore(pool, accountRepo, txnRepo, storeTimeout)

	// Background jobs
	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewAuditWriteWorker(auditRepo, opsLog))
	river.AddWorker(workers, jobs.NewReconcileWorker(store, log))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverMaxWorkers},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{jobs.PeriodicReconcile(cfg.ReconcileInterval)},
		Logger:       log,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	// Identity
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret, cfg.JWTTTL)
	if cfg.BootstrapAdmin() {
		u, created, err := authSvc.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			slog.Error("Bootstrap admin failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Bootstrap admin ready", "user_id", u.ID, "created", created)
	}

	// Ledger
	recorder := audit.NewRecorder(auditRepo, jobs.AuditEnqueuer(riverClient), opsLog, cfg.AuditWriteTimeout)
	engine := ledger.NewEngine(store, authSvc, recorder, log)

	validator, err := services.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	// HTTP
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	authHandler := auth.NewHandler(authSvc, log)
	dashHandler := dashboard.NewHandler(engine, store, auditRepo, authSvc, validator, log)
	walletHandler := &handlers.WalletHandler{Ledger: engine, Validator: validator, Logger: log}

	mux := http.NewServeMux()
	mux.Handle("/api/", router.New(authHandler, dashHandler, authSvc, limiter))
	RegisterWalletRoutes(mux, walletHandler, authSvc, limiter)
	RegisterOpsRoutes(mux, pool)

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(middleware.RequestLog(log)(middleware.Instrument(mux)))

	// Shutdown goes through Stop below, not through ctx cancellation.
	if err := riverClient.Start(context.WithoutCancel(ctx)); err != nil {
		slog.Error("River client failed to start", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	// Stop lets in-flight jobs, including deferred audit writes, finish.
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River shutdown", "error", err)
	}
}
