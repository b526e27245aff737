package subscription_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

func TestTransitionTrialEndFixedAfterActivation(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t)
	userID := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := now.AddDate(0, 1, 0)

	active, outcome := subscription.Transition(nil, userID, subscription.Event{
		Kind:           subscription.KindCheckoutCompleted,
		OccurredAt:     now,
		Mode:           subscription.CheckoutModeSubscription,
		SubscriptionID: "sub_1",
		ProductID:      "prod_pro",
		PeriodStart:    &now,
		PeriodEnd:      &end,
	}, catalog, now)
	require.Equal(t, subscription.OutcomeApplied, outcome)
	require.Nil(t, active.TrialEndsAt)

	trialEnd := now.AddDate(0, 0, 7)
	next, outcome := subscription.Transition(active, userID, subscription.Event{
		Kind:           subscription.KindSubscriptionUpdated,
		OccurredAt:     now.Add(time.Hour),
		SubscriptionID: "sub_1",
		Status:         subscription.StatusTrialing,
		TrialEnd:       &trialEnd,
	}, catalog, now)
	require.Equal(t, subscription.OutcomeApplied, outcome)
	assert.Equal(t, subscription.StatusTrialing, next.Status)
	assert.Nil(t, next.TrialEndsAt)
}

func TestTransitionTrialingUpdateSetsTrialEndBeforeActivation(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cur := subscription.NewTrial(uuid.New(), now, 14)
	cur.StripeSubscriptionID = "sub_1"

	trialEnd := now.AddDate(0, 0, 30)
	next, outcome := subscription.Transition(cur, cur.UserID, subscription.Event{
		Kind:           subscription.KindSubscriptionUpdated,
		OccurredAt:     now,
		SubscriptionID: "sub_1",
		Status:         subscription.StatusTrialing,
		TrialEnd:       &trialEnd,
	}, testCatalog(t), now)
	require.Equal(t, subscription.OutcomeApplied, outcome)
	require.NotNil(t, next.TrialEndsAt)
	assert.Equal(t, trialEnd, *next.TrialEndsAt)
}
