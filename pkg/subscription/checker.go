package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewfunnel/pkg/logger"
)

// Checker derives a user's access from the store on each call. Read
// failures degrade to the default trial tier.
type Checker struct {
	store  Store
	policy AccessPolicy
	log    *slog.Logger
	now    func() time.Time
}

func NewChecker(store Store, policy AccessPolicy, log *slog.Logger) *Checker {
	if log == nil {
		log = logger.Nop()
	}
	return &Checker{store: store, policy: policy, log: log, now: time.Now}
}

// WithNow returns a copy of c using now as its clock.
func (c *Checker) WithNow(now func() time.Time) *Checker {
	cp := *c
	cp.now = now
	return &cp
}

// Check returns the user's access and record. The record is nil when the
// user has none or the store failed.
func (c *Checker) Check(ctx context.Context, userID uuid.UUID) (Access, *Record) {
	rec, err := c.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			c.log.ErrorContext(ctx, "subscription lookup failed, assuming trial", logger.UserID(userID), logger.Error(err))
		}
		rec = nil
	}
	return c.policy.Evaluate(rec, c.now()), rec
}
