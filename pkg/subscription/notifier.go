package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Notification reports a status change the user should hear about.
type Notification struct {
	UserID   uuid.UUID
	Previous Status
	Record   *Record
}

// Notifier delivers notifications. Failures are logged by the caller and
// never fail reconciliation.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

func shouldNotify(prev, next Status) bool {
	if prev == next {
		return false
	}
	return next == StatusPastDue || next == StatusCanceled
}
