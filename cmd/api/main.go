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

	"github.com/joho/godotenv"

	"github.com/baharkarakas/tender-backend/internal/api"
	"github.com/baharkarakas/tender-backend/internal/auth"
	"github.com/baharkarakas/tender-backend/internal/config"
	"github.com/baharkarakas/tender-backend/internal/db"
	"github.com/baharkarakas/tender-backend/internal/gateway"
	"github.com/baharkarakas/tender-backend/internal/lock"
	"github.com/baharkarakas/tender-backend/internal/logger"
	"github.com/baharkarakas/tender-backend/internal/metrics"
	repo "github.com/baharkarakas/tender-backend/internal/repository"
	"github.com/baharkarakas/tender-backend/internal/repository/memory"
	"github.com/baharkarakas/tender-backend/internal/repository/postgres"
	"github.com/baharkarakas/tender-backend/internal/services"
	"github.com/baharkarakas/tender-backend/internal/worker"
)

type stores struct {
	txns    repo.Transactions
	intents repo.PaymentIntents
	audit   repo.AuditLogs
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	locks, closeLocks, err := openLocker(ctx, cfg, log)
	if err != nil {
		log.Error("locker", "err", err)
		os.Exit(1)
	}
	defer closeLocks()

	if cfg.Gateway.KeyID == "" || cfg.Gateway.KeySecret == "" {
		log.Warn("gateway credentials not set; checkout and verification will fail")
	}
	gw := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,
	})

	wp := worker.NewPool(cfg.Workers)
	defer wp.Stop()
	audit := services.NewAuditor(st.audit, wp)

	txnSvc := services.NewTransactionService(services.TransactionDeps{
		Transactions:   st.txns,
		Intents:        st.intents,
		Locks:          locks,
		Audit:          audit,
		Currency:       cfg.Currency,
		CheckoutWindow: cfg.CheckoutWindow,
	})
	paySvc := services.NewPaymentService(services.PaymentDeps{
		Gateway:       gw,
		Transactions:  st.txns,
		Intents:       st.intents,
		Locks:         locks,
		Audit:         audit,
		Logger:        log,
		SigningSecret: cfg.Gateway.KeySecret,
		Currency:      cfg.Currency,
	})

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		Cfg:    cfg,
		Logger: log,
		TM:     auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, time.Hour),
		TxnSvc: txnSvc,
		PaySvc: paySvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, func(), error) {
	if cfg.Store == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		m := memory.New()
		return stores{m.Transactions(), m.Intents(), m.AuditLogs()}, func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		return stores{}, nil, err
	}
	if cfg.Migrate {
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return stores{}, nil, err
		}
	}
	repos := postgres.NewRepositories(pool)
	return stores{repos.Transactions, repos.Intents, repos.AuditLogs}, pool.Close, nil
}

func openLocker(ctx context.Context, cfg config.Config, log *slog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewLocal(), func() {}, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using redis settlement lock", "ttl", cfg.LockTTL)
	return lock.NewRedis(client, cfg.LockTTL), func() { _ = client.Close() }, nil
}
