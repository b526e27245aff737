package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MutateFunc receives the current record (nil when none exists) and returns
// the record to persist. Returning nil leaves storage untouched.
type MutateFunc func(cur *Record) (*Record, error)

// Store persists subscription records. Mutations run atomically per record:
// concurrent mutations of the same user serialize.
type Store interface {
	// Get returns ErrRecordNotFound when the user has no record.
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error)
	// MutateByUserID upserts the record keyed on user id.
	MutateByUserID(ctx context.Context, userID uuid.UUID, fn MutateFunc) error
	// MutateBySubscriptionID returns ErrRecordNotFound when no record carries
	// the subscription id; fn is not called in that case.
	MutateBySubscriptionID(ctx context.Context, subscriptionID string, fn MutateFunc) error
	// EnsureTrial creates a trialing record unless one exists and reports
	// whether it did. An existing trialing record without a trial end and
	// without a provider subscription gets trialEndsAt.
	EnsureTrial(ctx context.Context, userID uuid.UUID, trialEndsAt time.Time) (*Record, bool, error)
	// SetSuperAdmin toggles the bypass flag. Granting creates a trialing
	// record ending at trialEndsAt when none exists; revoking a missing
	// record is a no-op.
	SetSuperAdmin(ctx context.Context, userID uuid.UUID, enabled bool, trialEndsAt time.Time) error
}
