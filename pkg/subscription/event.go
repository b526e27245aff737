package subscription

import "time"

// EventKind is the normalized billing event type.
type EventKind string

const (
	KindCheckoutCompleted    EventKind = "checkout_completed"
	KindSubscriptionUpdated  EventKind = "subscription_updated"
	KindSubscriptionDeleted  EventKind = "subscription_deleted"
	KindInvoicePaymentFailed EventKind = "invoice_payment_failed"
	KindIgnored              EventKind = "ignored"
)

// CheckoutModeSubscription is the only checkout mode that creates records.
const CheckoutModeSubscription = "subscription"

// Event is a provider webhook reduced to the fields reconciliation needs.
// It is serialized into the dead-letter store, so fields carry JSON tags.
type Event struct {
	ID                string     `json:"id"`
	Kind              EventKind  `json:"kind"`
	ProviderType      string     `json:"provider_type"`
	OccurredAt        time.Time  `json:"occurred_at"`
	Mode              string     `json:"mode,omitempty"`
	Email             string     `json:"email,omitempty"`
	CustomerID        string     `json:"customer_id,omitempty"`
	SubscriptionID    string     `json:"subscription_id,omitempty"`
	ProductID         string     `json:"product_id,omitempty"`
	PriceID           string     `json:"price_id,omitempty"`
	Status            Status     `json:"status,omitempty"`
	PeriodStart       *time.Time `json:"period_start,omitempty"`
	PeriodEnd         *time.Time `json:"period_end,omitempty"`
	TrialEnd          *time.Time `json:"trial_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end,omitempty"`
}
