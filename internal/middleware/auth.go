package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"tip-gate-backend/internal/models"
)

type contextKey string

const fidKey contextKey = "fid"

// TokenValidator resolves a session token to the fid it was issued for
type TokenValidator interface {
	ValidateToken(token string) (models.FID, error)
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			fid, err := tokens.ValidateToken(parts[1])
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithFID(r.Context(), fid)))
		})
	}
}

// WithFID returns a copy of ctx carrying the authenticated fid
func WithFID(ctx context.Context, fid models.FID) context.Context {
	return context.WithValue(ctx, fidKey, fid)
}

// GetFID extracts the authenticated fid from context
func GetFID(ctx context.Context) (models.FID, bool) {
	fid, ok := ctx.Value(fidKey).(models.FID)
	return fid, ok && fid != 0
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ValidateWebSocketToken validates JWT token from WebSocket query parameter
func ValidateWebSocketToken(token string, tokens TokenValidator) (models.FID, error) {
	if token == "" {
		return 0, fmt.Errorf("token required")
	}
	return tokens.ValidateToken(token)
}
