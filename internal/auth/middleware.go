package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminAuthMiddleware guards the admin endpoints with a static bearer
// token. Session management is handled by the surrounding application;
// this only protects the manual sweep trigger.
func AdminAuthMiddleware(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if adminToken == "" || !strings.HasPrefix(header, "Bearer ") ||
				subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
