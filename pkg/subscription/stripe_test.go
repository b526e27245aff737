package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

func newTestProvider(t *testing.T, opts ...subscription.StripeOption) *subscription.StripeProvider {
	t.Helper()
	p, err := subscription.NewStripeProvider(subscription.StripeConfig{
		WebhookSecret:   testWebhookSecret,
		SuccessURL:      "https://app.example.com/ok",
		CancelURL:       "https://app.example.com/cancel",
		PortalReturnURL: "https://app.example.com/dashboard",
	}, opts...)
	require.NoError(t, err)
	return p
}

func TestNewStripeProviderRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := subscription.NewStripeProvider(subscription.StripeConfig{})
	assert.ErrorIs(t, err, subscription.ErrMissingWebhookSecret)
}

func TestStripeParseWebhookSignature(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t)
	payload, header := signedEvent(t, "evt_1", "customer.subscription.deleted", time.Now(), map[string]any{"id": "sub_1"})

	t.Run("missing signature", func(t *testing.T) {
		_, err := p.ParseWebhook(context.Background(), payload, "")
		assert.ErrorIs(t, err, subscription.ErrWebhookVerificationFailed)
	})

	t.Run("invalid signature", func(t *testing.T) {
		_, err := p.ParseWebhook(context.Background(), payload, "t=1,v1=deadbeef")
		assert.ErrorIs(t, err, subscription.ErrWebhookVerificationFailed)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-2] = ' '
		_, err := p.ParseWebhook(context.Background(), tampered, header)
		assert.ErrorIs(t, err, subscription.ErrWebhookVerificationFailed)
	})

	t.Run("valid", func(t *testing.T) {
		ev, err := p.ParseWebhook(context.Background(), payload, header)
		require.NoError(t, err)
		assert.Equal(t, subscription.KindSubscriptionDeleted, ev.Kind)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
	})
}

func TestStripeParseCheckout(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	var lookedUp string
	p := newTestProvider(t, subscription.WithSubscriptionLookup(func(_ context.Context, id string) (*subscription.SubscriptionDetails, error) {
		lookedUp = id
		return &subscription.SubscriptionDetails{
			ID:          id,
			Status:      "active",
			PriceID:     "price_pro",
			ProductID:   "prod_pro",
			PeriodStart: start.Unix(),
			PeriodEnd:   end.Unix(),
		}, nil
	}))

	created := time.Date(2026, 4, 1, 0, 0, 5, 0, time.UTC)
	payload, header := signedEvent(t, "evt_checkout", "checkout.session.completed", created,
		checkoutObject("Owner@Example.com", "cus_1", "sub_1"))

	ev, err := p.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", lookedUp)
	assert.Equal(t, subscription.KindCheckoutCompleted, ev.Kind)
	assert.Equal(t, "evt_checkout", ev.ID)
	assert.Equal(t, created, ev.OccurredAt)
	assert.Equal(t, "subscription", ev.Mode)
	assert.Equal(t, "Owner@Example.com", ev.Email)
	assert.Equal(t, "cus_1", ev.CustomerID)
	assert.Equal(t, "prod_pro", ev.ProductID)
	require.NotNil(t, ev.PeriodStart)
	assert.Equal(t, start, *ev.PeriodStart)
	assert.Equal(t, end, *ev.PeriodEnd)
}

func TestStripeParseCheckoutLookupFailure(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, subscription.WithSubscriptionLookup(func(context.Context, string) (*subscription.SubscriptionDetails, error) {
		return nil, errors.New("stripe unavailable")
	}))
	payload, header := signedEvent(t, "evt_c", "checkout.session.completed", time.Now(), checkoutObject("a@example.com", "cus_1", "sub_1"))

	_, err := p.ParseWebhook(context.Background(), payload, header)
	assert.ErrorIs(t, err, subscription.ErrProviderError)
}

func TestStripeParseCheckoutPaymentModeSkipsLookup(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, subscription.WithSubscriptionLookup(func(context.Context, string) (*subscription.SubscriptionDetails, error) {
		t.Fatal("lookup must not be called")
		return nil, nil
	}))
	obj := checkoutObject("a@example.com", "cus_1", "")
	obj["mode"] = "payment"
	payload, header := signedEvent(t, "evt_pay", "checkout.session.completed", time.Now(), obj)

	ev, err := p.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "payment", ev.Mode)
}

func TestStripeParseSubscriptionAndInvoice(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	payload, header := signedEvent(t, "evt_upd", "customer.subscription.updated", time.Now(),
		subscriptionObject("sub_9", "cus_9", "past_due", "prod_pro", start, end))
	ev, err := p.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, subscription.KindSubscriptionUpdated, ev.Kind)
	assert.Equal(t, subscription.StatusPastDue, ev.Status)
	assert.Equal(t, "prod_pro", ev.ProductID)
	assert.Equal(t, "cus_9", ev.CustomerID)
	require.NotNil(t, ev.PeriodEnd)
	assert.Equal(t, end, *ev.PeriodEnd)

	payload, header = signedEvent(t, "evt_inv", "invoice.payment_failed", time.Now(), invoiceObject("sub_9", "cus_9"))
	ev, err = p.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, subscription.KindInvoicePaymentFailed, ev.Kind)
	assert.Equal(t, "sub_9", ev.SubscriptionID)

	legacy := map[string]any{"id": "in_2", "customer": map[string]any{"id": "cus_9"}, "subscription": "sub_legacy"}
	payload, header = signedEvent(t, "evt_inv2", "invoice.payment_failed", time.Now(), legacy)
	ev, err = p.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "sub_legacy", ev.SubscriptionID)
	assert.Equal(t, "cus_9", ev.CustomerID)
}

func TestStripeParseUnknownEvent(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t)
	payload, header := signedEvent(t, "evt_x", "customer.created", time.Now(), map[string]any{"id": "cus_1"})
	ev, err := p.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, subscription.KindIgnored, ev.Kind)
	assert.Equal(t, "customer.created", ev.ProviderType)
}

func TestStripeCreateLinks(t *testing.T) {
	t.Parallel()

	var gotCheckout *stripe.CheckoutSessionParams
	var gotPortal *stripe.BillingPortalSessionParams
	p := newTestProvider(t,
		subscription.WithCheckoutSessionCreator(func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			gotCheckout = params
			return &stripe.CheckoutSession{URL: "https://checkout.stripe.test/c/1"}, nil
		}),
		subscription.WithPortalSessionCreator(func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
			gotPortal = params
			return &stripe.BillingPortalSession{URL: "https://billing.stripe.test/p/1"}, nil
		}),
	)

	url, err := p.CreateCheckoutLink(context.Background(), subscription.CheckoutRequest{
		PriceID: "price_pro",
		UserID:  "user-1",
		Email:   "owner@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/c/1", url)
	require.NotNil(t, gotCheckout)
	assert.Equal(t, "subscription", *gotCheckout.Mode)
	assert.Equal(t, "owner@example.com", *gotCheckout.CustomerEmail)
	assert.Equal(t, "user-1", *gotCheckout.ClientReferenceID)
	assert.Equal(t, "price_pro", *gotCheckout.LineItems[0].Price)

	_, err = p.CreateCheckoutLink(context.Background(), subscription.CheckoutRequest{})
	assert.ErrorIs(t, err, subscription.ErrPlanHasNoPrice)

	url, err = p.CreatePortalLink(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/p/1", url)
	assert.Equal(t, "cus_1", *gotPortal.Customer)
	assert.Equal(t, "https://app.example.com/dashboard", *gotPortal.ReturnURL)

	_, err = p.CreatePortalLink(context.Background(), "")
	assert.ErrorIs(t, err, subscription.ErrMissingCustomerID)
}
