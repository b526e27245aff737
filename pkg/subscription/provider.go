package subscription

import "context"

// Provider is the payment provider integration: it verifies and normalizes
// webhooks and creates hosted checkout and portal sessions.
type Provider interface {
	// ParseWebhook verifies signature before decoding payload. Verification
	// failures wrap ErrWebhookVerificationFailed.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (Event, error)
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (string, error)
	CreatePortalLink(ctx context.Context, customerID string) (string, error)
}

// CheckoutRequest describes a hosted checkout for one plan.
type CheckoutRequest struct {
	PriceID string
	UserID  string
	Email   string
}
