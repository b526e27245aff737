package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/reviewfunnel/pkg/pg"
	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

const recordColumns = `user_id, status, plan, trial_ends_at, current_period_start, current_period_end,
	COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
	cancel_at_period_end, is_super_admin, last_event_at, created_at, updated_at`

// PGStore implements subscription.Store on the subscriptions table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*subscription.Record, error) {
	return scanRecord(s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM subscriptions WHERE user_id = $1`, userID))
}

func (s *PGStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*subscription.Record, error) {
	return scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`, subscriptionID))
}

func (s *PGStore) MutateByUserID(ctx context.Context, userID uuid.UUID, fn subscription.MutateFunc) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		cur, err := scanRecord(tx.QueryRow(ctx,
			`SELECT `+recordColumns+` FROM subscriptions WHERE user_id = $1 FOR UPDATE`, userID))
		if errors.Is(err, subscription.ErrRecordNotFound) {
			cur = nil
		} else if err != nil {
			return err
		}
		return applyMutation(ctx, tx, userID, cur, fn)
	})
}

func (s *PGStore) MutateBySubscriptionID(ctx context.Context, subscriptionID string, fn subscription.MutateFunc) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		cur, err := scanRecord(tx.QueryRow(ctx,
			`SELECT `+recordColumns+` FROM subscriptions WHERE stripe_subscription_id = $1 FOR UPDATE`, subscriptionID))
		if err != nil {
			return err
		}
		return applyMutation(ctx, tx, cur.UserID, cur, fn)
	})
}

func (s *PGStore) EnsureTrial(ctx context.Context, userID uuid.UUID, trialEndsAt time.Time) (*subscription.Record, bool, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, status, trial_ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+recordColumns,
		userID, string(subscription.StatusTrialing), trialEndsAt.UTC()))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, subscription.ErrRecordNotFound) {
		return nil, false, err
	}

	// A row created by SetSuperAdmin before trial ends were recorded has
	// none; give it the trial it never started.
	_, err = s.pool.Exec(ctx, `
		UPDATE subscriptions SET trial_ends_at = $3, updated_at = NOW()
		WHERE user_id = $1 AND status = $2 AND trial_ends_at IS NULL AND stripe_subscription_id IS NULL`,
		userID, string(subscription.StatusTrialing), trialEndsAt.UTC())
	if err != nil {
		return nil, false, errors.Join(subscription.ErrStorage, fmt.Errorf("repair trial: %w", err))
	}
	rec, err = s.Get(ctx, userID)
	return rec, false, err
}

func (s *PGStore) SetSuperAdmin(ctx context.Context, userID uuid.UUID, enabled bool, trialEndsAt time.Time) error {
	var err error
	if enabled {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO subscriptions (user_id, status, trial_ends_at, is_super_admin, created_at, updated_at)
			VALUES ($1, $2, $3, TRUE, NOW(), NOW())
			ON CONFLICT (user_id) DO UPDATE SET is_super_admin = TRUE, updated_at = NOW()`,
			userID, string(subscription.StatusTrialing), trialEndsAt.UTC())
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE subscriptions SET is_super_admin = FALSE, updated_at = NOW() WHERE user_id = $1`, userID)
	}
	if err != nil {
		return errors.Join(subscription.ErrStorage, fmt.Errorf("set super admin: %w", err))
	}
	return nil
}

func applyMutation(ctx context.Context, tx pgx.Tx, userID uuid.UUID, cur *subscription.Record, fn subscription.MutateFunc) error {
	next, err := fn(cur)
	if err != nil || next == nil {
		return err
	}
	next.UserID = userID
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now().UTC()
	}

	// The WHERE guard keeps a concurrent first insert from overwriting a
	// newer event; the super admin flag is only changed by SetSuperAdmin.
	_, err = tx.Exec(ctx, `
		INSERT INTO subscriptions (user_id, status, plan, trial_ends_at, current_period_start, current_period_end,
			stripe_customer_id, stripe_subscription_id, cancel_at_period_end, is_super_admin,
			last_event_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			plan = EXCLUDED.plan,
			trial_ends_at = EXCLUDED.trial_ends_at,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = EXCLUDED.updated_at
		WHERE subscriptions.last_event_at IS NULL
			OR EXCLUDED.last_event_at IS NULL
			OR subscriptions.last_event_at <= EXCLUDED.last_event_at`,
		next.UserID, string(next.Status), next.Plan, next.TrialEndsAt, next.CurrentPeriodStart, next.CurrentPeriodEnd,
		next.StripeCustomerID, next.StripeSubscriptionID, next.CancelAtPeriodEnd, next.IsSuperAdmin,
		next.LastEventAt, next.CreatedAt, next.UpdatedAt)
	if err != nil {
		return errors.Join(subscription.ErrStorage, fmt.Errorf("upsert subscription: %w", err))
	}
	return nil
}

func scanRecord(row pgx.Row) (*subscription.Record, error) {
	var (
		r      subscription.Record
		status string
	)
	err := row.Scan(&r.UserID, &status, &r.Plan, &r.TrialEndsAt, &r.CurrentPeriodStart, &r.CurrentPeriodEnd,
		&r.StripeCustomerID, &r.StripeSubscriptionID, &r.CancelAtPeriodEnd, &r.IsSuperAdmin,
		&r.LastEventAt, &r.CreatedAt, &r.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrRecordNotFound
	}
	if err != nil {
		return nil, errors.Join(subscription.ErrStorage, fmt.Errorf("scan subscription: %w", err))
	}
	r.Status = subscription.Status(status)
	return &r, nil
}
