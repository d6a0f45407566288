package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/tender-backend/internal/api/handlers"
	"github.com/baharkarakas/tender-backend/internal/auth"
	"github.com/baharkarakas/tender-backend/internal/config"
	"github.com/baharkarakas/tender-backend/internal/metrics"
	"github.com/baharkarakas/tender-backend/internal/middleware"
	"github.com/baharkarakas/tender-backend/internal/services"
)

type RouterDeps struct {
	Cfg    config.Config
	Logger *slog.Logger
	TM     *auth.TokenManager
	TxnSvc *services.TransactionService
	PaySvc *services.PaymentService
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.RequestLog(d.Logger), middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "If-Match", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	authMW := middleware.NewAuthMiddleware(d.TM, d.Cfg.Env)
	ledgerH := handlers.NewLedgerHandler()
	txnH := handlers.NewTransactionHandler(d.TxnSvc)
	payH := handlers.NewPaymentHandler(d.PaySvc)
	authH := handlers.NewAuthHandler(d.TM, d.Cfg.Env)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.Cfg.RateRPS))

		r.Post("/auth/dev-token", authH.DevToken)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)

			r.Post("/ledger/totals", ledgerH.Totals)

			r.Route("/transactions", func(r chi.Router) {
				r.Post("/", txnH.Create)
				r.Get("/", txnH.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", txnH.Get)
					r.Get("/history", txnH.History)
					r.Put("/tenders", txnH.ReplaceTenders)
					r.Post("/payments", txnH.RecordPayment)
					r.Post("/checkout", payH.Checkout)
					r.With(middleware.RequireRole(middleware.RoleAdmin)).Delete("/", txnH.Delete)
				})
			})

			r.Post("/payments/intents", payH.CreateIntent)
			r.Post("/payments/verify", payH.Verify)
		})
	})

	return r
}
