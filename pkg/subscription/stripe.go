package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig configures the Stripe provider.
type StripeConfig struct {
	SecretKey       string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET"`
	SuccessURL      string `env:"STRIPE_SUCCESS_URL" envDefault:"http://localhost:5173/dashboard?checkout=success"`
	CancelURL       string `env:"STRIPE_CANCEL_URL" envDefault:"http://localhost:5173/pricing"`
	PortalReturnURL string `env:"STRIPE_PORTAL_RETURN_URL" envDefault:"http://localhost:5173/dashboard"`
}

// SubscriptionDetails is the part of a Stripe subscription that checkout
// reconciliation needs. Checkout sessions carry no price data, so it is
// fetched separately.
type SubscriptionDetails struct {
	ID                string
	CustomerID        string
	Status            string
	PriceID           string
	ProductID         string
	PeriodStart       int64
	PeriodEnd         int64
	TrialEnd          int64
	CancelAtPeriodEnd bool
}

// SubscriptionLookup fetches a subscription by id.
type SubscriptionLookup func(ctx context.Context, id string) (*SubscriptionDetails, error)

type (
	checkoutCreator func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	portalCreator   func(*stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
)

// StripeProvider implements Provider on stripe-go.
type StripeProvider struct {
	cfg      StripeConfig
	lookup   SubscriptionLookup
	checkout checkoutCreator
	portal   portalCreator
}

// StripeOption configures a StripeProvider.
type StripeOption func(*StripeProvider)

// WithSubscriptionLookup replaces the Stripe API call used to enrich
// checkout events.
func WithSubscriptionLookup(fn SubscriptionLookup) StripeOption {
	return func(p *StripeProvider) {
		if fn != nil {
			p.lookup = fn
		}
	}
}

// WithCheckoutSessionCreator replaces checkout session creation.
func WithCheckoutSessionCreator(fn func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)) StripeOption {
	return func(p *StripeProvider) {
		if fn != nil {
			p.checkout = fn
		}
	}
}

// WithPortalSessionCreator replaces billing portal session creation.
func WithPortalSessionCreator(fn func(*stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)) StripeOption {
	return func(p *StripeProvider) {
		if fn != nil {
			p.portal = fn
		}
	}
}

// NewStripeProvider sets the global Stripe key when cfg carries one.
func NewStripeProvider(cfg StripeConfig, opts ...StripeOption) (*StripeProvider, error) {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, ErrMissingWebhookSecret
	}
	if cfg.SecretKey != "" {
		stripe.Key = cfg.SecretKey
	}
	p := &StripeProvider{
		cfg:      cfg,
		lookup:   fetchStripeSubscription,
		checkout: checkoutsession.New,
		portal:   portalsession.New,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ParseWebhook implements Provider.
func (p *StripeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (Event, error) {
	if strings.TrimSpace(signature) == "" {
		return Event{}, errors.Join(ErrWebhookVerificationFailed, errors.New("missing signature"))
	}
	se, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, errors.Join(ErrWebhookVerificationFailed, err)
	}

	ev := Event{
		ID:           se.ID,
		Kind:         KindIgnored,
		ProviderType: string(se.Type),
		OccurredAt:   time.Unix(se.Created, 0).UTC(),
	}
	var raw json.RawMessage
	if se.Data != nil {
		raw = se.Data.Raw
	}

	switch se.Type {
	case "checkout.session.completed":
		err = p.decodeCheckout(ctx, raw, &ev)
	case "customer.subscription.updated":
		ev.Kind = KindSubscriptionUpdated
		err = decodeSubscription(raw, &ev)
	case "customer.subscription.deleted":
		ev.Kind = KindSubscriptionDeleted
		err = decodeSubscription(raw, &ev)
	case "invoice.payment_failed":
		ev.Kind = KindInvoicePaymentFailed
		err = decodeInvoice(raw, &ev)
	}
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// CreateCheckoutLink implements Provider.
func (p *StripeProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (string, error) {
	if req.PriceID == "" {
		return "", ErrPlanHasNoPrice
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(p.cfg.SuccessURL),
		CancelURL:  stripe.String(p.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	if req.UserID != "" {
		params.ClientReferenceID = stripe.String(req.UserID)
	}
	params.Context = ctx

	s, err := p.checkout(params)
	if err != nil {
		return "", errors.Join(ErrProviderError, err)
	}
	if s == nil || s.URL == "" {
		return "", ErrNoCheckoutURL
	}
	return s.URL, nil
}

// CreatePortalLink implements Provider.
func (p *StripeProvider) CreatePortalLink(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", ErrMissingCustomerID
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(p.cfg.PortalReturnURL),
	}
	params.Context = ctx

	s, err := p.portal(params)
	if err != nil {
		return "", errors.Join(ErrProviderError, err)
	}
	if s == nil || s.URL == "" {
		return "", ErrNoPortalURL
	}
	return s.URL, nil
}

type checkoutSessionObject struct {
	ID              string          `json:"id"`
	Mode            string          `json:"mode"`
	Customer        json.RawMessage `json:"customer"`
	Subscription    json.RawMessage `json:"subscription"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type subscriptionObject struct {
	ID                 string          `json:"id"`
	Customer           json.RawMessage `json:"customer"`
	Status             string          `json:"status"`
	CancelAtPeriodEnd  bool            `json:"cancel_at_period_end"`
	TrialEnd           int64           `json:"trial_end"`
	CurrentPeriodStart int64           `json:"current_period_start"`
	CurrentPeriodEnd   int64           `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID      string          `json:"id"`
				Product json.RawMessage `json:"product"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceObject struct {
	ID            string          `json:"id"`
	Customer      json.RawMessage `json:"customer"`
	CustomerEmail string          `json:"customer_email"`
	Subscription  json.RawMessage `json:"subscription"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription json.RawMessage `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (p *StripeProvider) decodeCheckout(ctx context.Context, raw json.RawMessage, ev *Event) error {
	var s checkoutSessionObject
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.Join(ErrMalformedEvent, fmt.Errorf("decode checkout session: %w", err))
	}
	ev.Kind = KindCheckoutCompleted
	ev.Mode = s.Mode
	ev.CustomerID = expandableID(s.Customer)
	ev.SubscriptionID = expandableID(s.Subscription)
	ev.Email = s.CustomerEmail
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		ev.Email = s.CustomerDetails.Email
	}
	if s.Mode != CheckoutModeSubscription || ev.SubscriptionID == "" {
		return nil
	}

	d, err := p.lookup(ctx, ev.SubscriptionID)
	if err != nil {
		return errors.Join(ErrProviderError, fmt.Errorf("fetch subscription %s: %w", ev.SubscriptionID, err))
	}
	if d == nil {
		return nil
	}
	ev.PriceID = d.PriceID
	ev.ProductID = d.ProductID
	ev.Status = Status(d.Status)
	ev.CancelAtPeriodEnd = d.CancelAtPeriodEnd
	ev.PeriodStart = unixTime(d.PeriodStart)
	ev.PeriodEnd = unixTime(d.PeriodEnd)
	ev.TrialEnd = unixTime(d.TrialEnd)
	if ev.CustomerID == "" {
		ev.CustomerID = d.CustomerID
	}
	return nil
}

func decodeSubscription(raw json.RawMessage, ev *Event) error {
	var s subscriptionObject
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.Join(ErrMalformedEvent, fmt.Errorf("decode subscription: %w", err))
	}
	ev.SubscriptionID = s.ID
	ev.CustomerID = expandableID(s.Customer)
	ev.Status = Status(s.Status)
	ev.CancelAtPeriodEnd = s.CancelAtPeriodEnd
	ev.TrialEnd = unixTime(s.TrialEnd)

	// Newer API versions carry period bounds on items only.
	start, end := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		ev.PriceID = item.Price.ID
		ev.ProductID = expandableID(item.Price.Product)
		if item.CurrentPeriodStart > 0 {
			start, end = item.CurrentPeriodStart, item.CurrentPeriodEnd
		}
	}
	ev.PeriodStart = unixTime(start)
	ev.PeriodEnd = unixTime(end)
	return nil
}

func decodeInvoice(raw json.RawMessage, ev *Event) error {
	var inv invoiceObject
	if err := json.Unmarshal(raw, &inv); err != nil {
		return errors.Join(ErrMalformedEvent, fmt.Errorf("decode invoice: %w", err))
	}
	ev.CustomerID = expandableID(inv.Customer)
	ev.Email = inv.CustomerEmail
	ev.SubscriptionID = expandableID(inv.Subscription)
	if ev.SubscriptionID == "" && inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		ev.SubscriptionID = expandableID(inv.Parent.SubscriptionDetails.Subscription)
	}
	return nil
}

// expandableID reads a Stripe field that is either an id string or an
// expanded object with an "id" member.
func expandableID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func fetchStripeSubscription(ctx context.Context, id string) (*SubscriptionDetails, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := stripesub.Get(id, params)
	if err != nil {
		return nil, err
	}

	d := &SubscriptionDetails{
		ID:                s.ID,
		Status:            string(s.Status),
		TrialEnd:          s.TrialEnd,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		d.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		d.PeriodStart = item.CurrentPeriodStart
		d.PeriodEnd = item.CurrentPeriodEnd
		if item.Price != nil {
			d.PriceID = item.Price.ID
			if item.Price.Product != nil {
				d.ProductID = item.Price.Product.ID
			}
		}
	}
	return d, nil
}
