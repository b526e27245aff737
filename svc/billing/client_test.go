package billing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
	"github.com/dmitrymomot/reviewfunnel/svc/billing"
)

func TestClientFetchFeedsTracker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	client := billing.NewClient(f.server.URL+"/", f.token(t, userID, "owner@cantina.example"), nil)

	rec, err := client.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, _, err = f.store.EnsureTrial(ctx, userID, time.Now().Add(3*24*time.Hour))
	require.NoError(t, err)

	tracker := subscription.NewTracker(client)
	require.NoError(t, tracker.Refresh(ctx))
	require.NotNil(t, tracker.Record())
	assert.Equal(t, subscription.StatusTrialing, tracker.Record().Status)

	access := tracker.Access(time.Now())
	assert.Equal(t, subscription.TierTrial, access.Tier)
	assert.Equal(t, 3, access.DaysLeft)
}

func TestClientUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := billing.NewClient(srv.URL, "bad", srv.Client()).Fetch(context.Background())
	assert.ErrorIs(t, err, billing.ErrUnexpectedStatus)
}
