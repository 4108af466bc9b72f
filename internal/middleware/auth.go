// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/afterdark-app/afterdark/internal/auth"
)

// TokenValidator validates a bearer token and returns its claims.
// Satisfied by auth.JWTService.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// writeAuthError writes a JSON error response for authentication failures.
func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	io.WriteString(w, `{"error":"`+code+`","message":"`+message+`"}`)
}

// Auth returns middleware that requires a valid Bearer access token.
// On success the user ID from the token subject is stored in the request
// context, where handlers retrieve it with GetUserID.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, "missing_token", "Authorization header is required")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, "invalid_token", "Authorization header must be a Bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				code := "invalid_token"
				message := "Token is invalid"
				if err == auth.ErrExpiredToken {
					code = "expired_token"
					message = "Token has expired"
				}
				writeAuthError(w, code, message)
				return
			}

			// Refresh tokens must not be accepted on API endpoints.
			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, "invalid_token", "Token is not an access token")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth is like Auth but lets unauthenticated requests through.
// If a Bearer token is present and valid, the user ID is stored in context;
// otherwise the request proceeds anonymously.
func OptionalAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
				if claims, err := validator.ValidateToken(token); err == nil && claims.Type == auth.TokenTypeAccess {
					r = r.WithContext(SetUserID(r.Context(), claims.Subject))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
