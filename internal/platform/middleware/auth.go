package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"acctgate/pkg/domain"
	"acctgate/pkg/requestcontext"
)

// JWTValidator defines the interface for validating relay JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator. Subject
// is the acting address for the direct authorization path; Relay identifies
// which relay authenticated the caller.
type JWTClaims struct {
	Subject string
	Relay   string
}

// RequireAuth authenticates the relay bearer token and stores the acting
// address in the request context. The signature path still runs its own
// verification on top; this only establishes who the direct caller claims
// to be.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			actor, err := domain.ParseAddress(claims.Subject)
			if err != nil || actor.IsZero() {
				logger.WarnContext(ctx, "unauthorized access - subject is not an address",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Token subject must be an account address")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
