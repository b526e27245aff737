package subscription_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

func TestTrackerDefaultsToTrialWithoutData(t *testing.T) {
	t.Parallel()

	tr := subscription.NewTracker(subscription.FetcherFunc(func(context.Context) (*subscription.Record, error) {
		return nil, errors.New("offline")
	}))

	require.Error(t, tr.Refresh(context.Background()))
	a := tr.Access(time.Now())
	assert.Equal(t, subscription.TierTrial, a.Tier)
	assert.Equal(t, 14, a.DaysLeft)
	assert.True(t, tr.LastFetched().IsZero())
}

func TestTrackerKeepsPreviousValueOnError(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var fail atomic.Bool
	tr := subscription.NewTracker(
		subscription.FetcherFunc(func(context.Context) (*subscription.Record, error) {
			if fail.Load() {
				return nil, errors.New("offline")
			}
			return &subscription.Record{Status: subscription.StatusActive, Plan: "profissional"}, nil
		}),
		subscription.WithTrackerClock(func() time.Time { return now }),
	)

	require.NoError(t, tr.Refresh(context.Background()))
	assert.Equal(t, now, tr.LastFetched())

	fail.Store(true)
	require.Error(t, tr.Refresh(context.Background()))
	assert.Equal(t, subscription.TierActive, tr.Access(now).Tier)
	assert.Equal(t, "profissional", tr.Record().Plan)
	assert.Equal(t, now, tr.LastFetched())
}

func TestTrackerRunPollsAndInvalidates(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tr := subscription.NewTracker(
		subscription.FetcherFunc(func(context.Context) (*subscription.Record, error) {
			calls.Add(1)
			return nil, nil
		}),
		subscription.WithPollInterval(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	tr.Invalidate()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop")
	}
}
