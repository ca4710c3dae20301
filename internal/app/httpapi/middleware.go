package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/agilewallet/backend/internal/app/services/users"
	"github.com/agilewallet/backend/pkg/logger"
)

type contextKey string

const claimsKey contextKey = "claims"

// claimsFromContext returns the verified token claims for the request, if
// the auth middleware ran.
func claimsFromContext(ctx context.Context) (users.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(users.Claims)
	return claims, ok
}

// authMiddleware validates bearer tokens and stores the claims in the
// request context. Paths in skip are served unauthenticated.
type authMiddleware struct {
	users *users.Service
	log   *logger.Logger
	skip  map[string]bool
}

func newAuthMiddleware(userService *users.Service, log *logger.Logger, skipPaths []string) *authMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &authMiddleware{users: userService, log: log, skip: skip}
}

func (m *authMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeErrorMessage(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.users.VerifyToken(parts[1])
		if err != nil {
			m.log.WithError(err).WithField("path", r.URL.Path).Warn("token validation failed")
			writeErrorMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// corsMiddleware handles cross-origin access for browser clients.
type corsMiddleware struct {
	allowedOrigins []string
	allowAll       bool
}

func newCORSMiddleware(allowedOrigins []string) *corsMiddleware {
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}
	return &corsMiddleware{allowedOrigins: allowedOrigins, allowAll: allowAll}
}

func (m *corsMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if m.allowAll || m.isOriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *corsMiddleware) isOriginAllowed(origin string) bool {
	for _, allowed := range m.allowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}
