package middleware

import (
	"net/http"

	"spendwise-server/src/models"
)

// DemoModeMiddleware makes the API read-only for everyone but admins. It
// must run after JWTAuthMiddleware.
func DemoModeMiddleware(isDemo bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isDemo || r.Method == http.MethodGet || Role(r.Context()) == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, http.StatusForbidden, "Demo mode: only GET requests are allowed")
		})
	}
}
