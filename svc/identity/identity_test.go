package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewfunnel/pkg/jwt"
	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
	"github.com/dmitrymomot/reviewfunnel/svc/identity"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	got, err := identity.NormalizeEmail("  Owner@Restaurante.COM ")
	require.NoError(t, err)
	assert.Equal(t, "owner@restaurante.com", got)

	_, err = identity.NormalizeEmail("not-an-email")
	assert.ErrorIs(t, err, identity.ErrInvalidEmail)
}

func TestMemoryDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := identity.NewMemoryDirectory()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, d.Upsert(ctx, a, "Owner@Example.com"))
	assert.ErrorIs(t, d.Upsert(ctx, b, "owner@example.com"), identity.ErrInvalidEmail)

	id, err := d.LookupByEmail(ctx, "OWNER@example.com")
	require.NoError(t, err)
	assert.Equal(t, a, id)

	addr, err := d.EmailFor(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", addr)

	_, err = d.LookupByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, subscription.ErrUserNotFound)

	require.NoError(t, d.Upsert(ctx, a, "new@example.com"))
	_, err = d.LookupByEmail(ctx, "owner@example.com")
	assert.ErrorIs(t, err, subscription.ErrUserNotFound)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	tokens, err := jwt.New("secret")
	require.NoError(t, err)
	userID := uuid.New()

	h := identity.Authenticate(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := identity.UserFromContext(r.Context())
		require.True(t, ok)
		id, ok := identity.UserID(r.Context())
		require.True(t, ok)
		assert.Equal(t, u.ID, id)
		_, _ = w.Write([]byte(u.ID.String() + " " + u.Email))
	}))

	t.Run("valid", func(t *testing.T) {
		token, err := tokens.Issue(userID.String(), "owner@example.com")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID.String()+" owner@example.com", rec.Body.String())
	})

	t.Run("non uuid subject", func(t *testing.T) {
		token, err := tokens.Issue("not-a-uuid", "")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	})
}
