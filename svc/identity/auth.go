package identity

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewfunnel/pkg/jwt"
)

// User is the authenticated caller.
type User struct {
	ID    uuid.UUID
	Email string
}

type userCtxKey struct{}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the user stored by Authenticate.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(User)
	return u, ok
}

// UserID satisfies subscription.UserResolver.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	u, ok := UserFromContext(ctx)
	return u.ID, ok && u.ID != uuid.Nil
}

// Authenticate verifies the bearer token and stores the User in the
// request context. Rejections are JSON 401 responses.
func Authenticate(tokens *jwt.Service) func(http.Handler) http.Handler {
	verify := jwt.Middleware(tokens, func(w http.ResponseWriter, _ *http.Request, _ error) {
		unauthorized(w)
	})
	return func(next http.Handler) http.Handler {
		return verify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := jwt.FromContext(r.Context())
			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				unauthorized(w)
				return
			}
			u := User{ID: id, Email: claims.Email}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		}))
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": ErrUnauthorized.Error()})
}
