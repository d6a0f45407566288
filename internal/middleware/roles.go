package middleware

import (
	"net/http"

	"github.com/baharkarakas/tender-backend/internal/api/httpx"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// RequireRole lets the request through only for users holding one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := FromCtx(r.Context())
			if u.UserID == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
				return
			}
			if _, ok := allowed[u.Role]; !ok {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "role "+u.Role+" may not perform this action", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
