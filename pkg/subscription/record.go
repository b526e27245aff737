package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Status is the billing status of a record. Provider statuses outside the
// known set (incomplete, unpaid, paused, ...) are stored verbatim.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Record is the canonical subscription row. There is at most one per user.
type Record struct {
	UserID               uuid.UUID  `json:"user_id"`
	Status               Status     `json:"status"`
	Plan                 string     `json:"plan,omitempty"`
	TrialEndsAt          *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodStart   *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	IsSuperAdmin         bool       `json:"is_super_admin"`
	LastEventAt          *time.Time `json:"last_event_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of r. A nil receiver yields nil.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.TrialEndsAt = cloneTime(r.TrialEndsAt)
	c.CurrentPeriodStart = cloneTime(r.CurrentPeriodStart)
	c.CurrentPeriodEnd = cloneTime(r.CurrentPeriodEnd)
	c.LastEventAt = cloneTime(r.LastEventAt)
	return &c
}

// NewTrial returns a trialing record whose trial ends days after now.
func NewTrial(userID uuid.UUID, now time.Time, days int) *Record {
	ends := now.UTC().AddDate(0, 0, days)
	return &Record{
		UserID:      userID,
		Status:      StatusTrialing,
		TrialEndsAt: &ends,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
