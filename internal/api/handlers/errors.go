package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/baharkarakas/tender-backend/internal/api/httpx"
	"github.com/baharkarakas/tender-backend/internal/api/validate"
	"github.com/baharkarakas/tender-backend/internal/gateway"
	"github.com/baharkarakas/tender-backend/internal/ledger"
	"github.com/baharkarakas/tender-backend/internal/middleware"
	repo "github.com/baharkarakas/tender-backend/internal/repository"
	"github.com/baharkarakas/tender-backend/internal/services"
)

// writeError maps service errors onto the API error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		errs validate.Errs
		ve   *ledger.ValidationError
		ae   *ledger.AllocationError
		ue   *gateway.UnavailableError
	)
	switch {
	case errors.As(err, &errs):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", errs)
	case errors.As(err, &ve):
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", ve.Error(), map[string]string{ve.Field: ve.Reason})
	case errors.As(err, &ae):
		details := map[string]string{"reason": ae.Reason}
		if ae.Tender != "" {
			details["tender"] = string(ae.Tender)
			details["amount"] = ae.Amount.StringFixed(ledger.Scale)
		}
		httpx.WriteError(w, http.StatusUnprocessableEntity, "allocation_error", ae.Error(), details)
	case errors.As(err, &ue):
		slog.Warn("gateway unavailable", "request_id", middleware.RequestIDFrom(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway unavailable",
			map[string]any{"retryable": ue.Retryable()})
	case errors.Is(err, repo.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, services.ErrCheckoutPending):
		httpx.WriteError(w, http.StatusConflict, "checkout_pending", err.Error(), nil)
	case errors.Is(err, repo.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "conflict", "transaction was modified concurrently; reload and retry", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", "request cancelled", nil)
	default:
		slog.Error("request failed", "request_id", middleware.RequestIDFrom(r.Context()), "path", r.URL.Path, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

// actorCtx carries the authenticated user into audit records.
func actorCtx(r *http.Request) context.Context {
	return services.WithActor(r.Context(), middleware.FromCtx(r.Context()).UserID)
}
