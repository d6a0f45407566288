package handlers

import (
	"net/http"
	"time"

	"github.com/baharkarakas/tender-backend/internal/api/httpx"
	"github.com/baharkarakas/tender-backend/internal/api/validate"
	"github.com/baharkarakas/tender-backend/internal/auth"
	"github.com/baharkarakas/tender-backend/internal/middleware"
)

// AuthHandler only mints tokens in dev; real tokens come from the
// identity provider.
type AuthHandler struct {
	TM     *auth.TokenManager
	AppEnv string
}

func NewAuthHandler(tm *auth.TokenManager, appEnv string) *AuthHandler {
	return &AuthHandler{TM: tm, AppEnv: appEnv}
}

type devTokenReq struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *AuthHandler) DevToken(w http.ResponseWriter, r *http.Request) {
	if h.AppEnv != "dev" {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
		return
	}
	req := devTokenReq{}
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.BadJSON(w, err)
			return
		}
	}
	if req.UserID == "" {
		req.UserID = "00000000-0000-0000-0000-000000000000"
	}
	if req.Role == "" {
		req.Role = middleware.RoleCashier
	}
	var errs validate.Errs
	errs.Add(validate.OneOf("role", req.Role, middleware.RoleAdmin, middleware.RoleCashier))
	if err := errs.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	tok, exp, err := h.TM.Issue(req.UserID, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken: tok,
		ExpiresIn:   int64(time.Until(exp).Truncate(time.Second).Seconds()),
	})
}
