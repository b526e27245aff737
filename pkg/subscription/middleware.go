package subscription

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type accessCtxKey struct{}

// WithAccess stores a derived Access in ctx.
func WithAccess(ctx context.Context, a Access) context.Context {
	return context.WithValue(ctx, accessCtxKey{}, a)
}

// AccessFromContext returns the Access stored by RequireAccess.
func AccessFromContext(ctx context.Context) (Access, bool) {
	a, ok := ctx.Value(accessCtxKey{}).(Access)
	return a, ok
}

// UserResolver extracts the authenticated user id from a request context.
type UserResolver func(ctx context.Context) (uuid.UUID, bool)

// RequireAccess is the paywall: it answers 401 without a user and 402 when
// the user's tier is inactive.
func RequireAccess(checker *Checker, user UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := user(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "")
				return
			}
			access, _ := checker.Check(r.Context(), userID)
			if !access.Allowed() {
				writeError(w, http.StatusPaymentRequired, "subscription required", access.Tier)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccess(r.Context(), access)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string, tier Tier) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
		Tier  Tier   `json:"tier,omitempty"`
	}{msg, tier})
}
