package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Outcome describes what reconciliation did with an event.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeStale     Outcome = "stale"
	OutcomeTerminal  Outcome = "terminal"
	OutcomeMiss      Outcome = "miss"
	OutcomeParked    Outcome = "parked"
	OutcomeDuplicate Outcome = "duplicate"
)

// Transition computes the record produced by applying ev to cur (nil when
// the user has no record). It returns a nil record with a non-applied
// outcome when the event must not mutate state.
//
// Events older than the newest applied event are stale. A canceled record
// only leaves that state through a completed checkout.
func Transition(cur *Record, userID uuid.UUID, ev Event, catalog *Catalog, now time.Time) (*Record, Outcome) {
	if cur != nil && cur.LastEventAt != nil && ev.OccurredAt.Before(*cur.LastEventAt) {
		return nil, OutcomeStale
	}

	next := cur.Clone()
	if next == nil {
		if ev.Kind != KindCheckoutCompleted {
			return nil, OutcomeMiss
		}
		next = &Record{UserID: userID, CreatedAt: now}
	}

	switch ev.Kind {
	case KindCheckoutCompleted:
		if ev.Mode != CheckoutModeSubscription {
			return nil, OutcomeIgnored
		}
		next.Status = StatusActive
		next.Plan = catalog.PlanFor(ev.ProductID, ev.PriceID)
		next.TrialEndsAt = nil
		next.CurrentPeriodStart = cloneTime(ev.PeriodStart)
		next.CurrentPeriodEnd = cloneTime(ev.PeriodEnd)
		next.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
		setIfPresent(&next.StripeCustomerID, ev.CustomerID)
		setIfPresent(&next.StripeSubscriptionID, ev.SubscriptionID)

	case KindSubscriptionUpdated:
		if next.Status == StatusCanceled {
			return nil, OutcomeTerminal
		}
		next.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
		if ev.Status == StatusActive {
			next.Status = StatusActive
			if ev.ProductID != "" || ev.PriceID != "" {
				next.Plan = catalog.PlanFor(ev.ProductID, ev.PriceID)
			}
			if ev.PeriodStart != nil {
				next.CurrentPeriodStart = cloneTime(ev.PeriodStart)
				next.CurrentPeriodEnd = cloneTime(ev.PeriodEnd)
			}
			break
		}
		if ev.Status != "" {
			next.Status = ev.Status
		}
		// The trial end is fixed once a paid plan has been activated.
		if ev.Status == StatusTrialing && ev.TrialEnd != nil && next.Plan == "" {
			next.TrialEndsAt = cloneTime(ev.TrialEnd)
		}

	case KindSubscriptionDeleted:
		next.Status = StatusCanceled
		next.CancelAtPeriodEnd = false

	case KindInvoicePaymentFailed:
		if next.Status == StatusCanceled {
			return nil, OutcomeTerminal
		}
		next.Status = StatusPastDue

	default:
		return nil, OutcomeIgnored
	}

	occurred := ev.OccurredAt.UTC()
	next.LastEventAt = &occurred
	next.UpdatedAt = now
	return next, OutcomeApplied
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
