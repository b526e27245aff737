package subscription

import "time"

// Tier is the entitlement level derived from a record.
type Tier string

const (
	TierActive   Tier = "active"
	TierTrial    Tier = "trial"
	TierInactive Tier = "inactive"
)

// DefaultTrialDays is reported for users that have no record yet.
const DefaultTrialDays = 14

// Access is the derived view of a record at one instant.
type Access struct {
	Tier       Tier `json:"tier"`
	DaysLeft   int  `json:"days_left"`
	Subscribed bool `json:"subscribed"`
	SuperAdmin bool `json:"super_admin"`
}

// Allowed reports whether gated features are available.
func (a Access) Allowed() bool { return a.Tier != TierInactive }

// AccessPolicy classifies records into tiers.
type AccessPolicy struct {
	// DefaultTrialDays is reported as DaysLeft when the record is missing.
	// Zero means DefaultTrialDays.
	DefaultTrialDays int
}

// Evaluate derives the access tier of rec at now. A nil record is a new
// signup whose row has not been written yet and is treated as a fresh trial.
// Only status, trial end and the super admin flag participate; period
// bounds never do.
func (p AccessPolicy) Evaluate(rec *Record, now time.Time) Access {
	if rec == nil {
		days := p.DefaultTrialDays
		if days <= 0 {
			days = DefaultTrialDays
		}
		return Access{Tier: TierTrial, DaysLeft: days}
	}

	a := Access{
		DaysLeft:   daysLeft(rec.TrialEndsAt, now),
		Subscribed: rec.Status == StatusActive,
		SuperAdmin: rec.IsSuperAdmin,
	}
	switch {
	case rec.IsSuperAdmin, rec.Status == StatusActive:
		a.Tier = TierActive
	case rec.Status == StatusTrialing && rec.TrialEndsAt != nil && now.Before(*rec.TrialEndsAt):
		a.Tier = TierTrial
	default:
		a.Tier = TierInactive
	}
	return a
}

// Derive evaluates rec with the default policy.
func Derive(rec *Record, now time.Time) Access {
	return AccessPolicy{}.Evaluate(rec, now)
}

// daysLeft rounds the remaining trial up to whole days, floored at zero.
func daysLeft(end *time.Time, now time.Time) int {
	if end == nil {
		return 0
	}
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int((d + day - 1) / day)
}
