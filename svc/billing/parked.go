package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

// PGParkedStore implements subscription.ParkedStore on parked_events.
type PGParkedStore struct {
	pool *pgxpool.Pool
}

func NewPGParkedStore(pool *pgxpool.Pool) *PGParkedStore {
	return &PGParkedStore{pool: pool}
}

func (s *PGParkedStore) Park(ctx context.Context, ev subscription.Event, reason string, next time.Time) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal parked event: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO parked_events (event_id, email, payload, attempts, last_error, next_attempt_at, created_at)
		VALUES ($1, $2, $3, 0, $4, $5, NOW())
		ON CONFLICT (event_id) DO NOTHING`,
		ev.ID, ev.Email, payload, reason, next.UTC())
	if err != nil {
		return fmt.Errorf("insert parked event: %w", err)
	}
	return nil
}

func (s *PGParkedStore) Due(ctx context.Context, now time.Time, limit int) ([]subscription.ParkedEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, email, payload, attempts, last_error, next_attempt_at, resolved_at, abandoned_at, created_at
		FROM parked_events
		WHERE resolved_at IS NULL AND abandoned_at IS NULL AND next_attempt_at <= $1
		ORDER BY next_attempt_at
		LIMIT $2`, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query parked events: %w", err)
	}
	defer rows.Close()

	var out []subscription.ParkedEvent
	for rows.Next() {
		var (
			p       subscription.ParkedEvent
			payload []byte
		)
		if err := rows.Scan(&p.EventID, &p.Email, &payload, &p.Attempts, &p.LastError,
			&p.NextAttemptAt, &p.ResolvedAt, &p.AbandonedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan parked event: %w", err)
		}
		if err := json.Unmarshal(payload, &p.Event); err != nil {
			return nil, fmt.Errorf("decode parked event %s: %w", p.EventID, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parked events: %w", err)
	}
	return out, nil
}

func (s *PGParkedStore) Resolve(ctx context.Context, eventID string, at time.Time) error {
	return s.exec(ctx, `UPDATE parked_events SET resolved_at = $2 WHERE event_id = $1`, eventID, at.UTC())
}

func (s *PGParkedStore) Reschedule(ctx context.Context, eventID string, attempts int, lastError string, next time.Time) error {
	return s.exec(ctx, `UPDATE parked_events SET attempts = $2, last_error = $3, next_attempt_at = $4 WHERE event_id = $1`,
		eventID, attempts, lastError, next.UTC())
}

func (s *PGParkedStore) Abandon(ctx context.Context, eventID string, attempts int, lastError string, at time.Time) error {
	return s.exec(ctx, `UPDATE parked_events SET attempts = $2, last_error = $3, abandoned_at = $4 WHERE event_id = $1`,
		eventID, attempts, lastError, at.UTC())
}

func (s *PGParkedStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update parked event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Join(subscription.ErrParkedNotFound, fmt.Errorf("event %v", args[0]))
	}
	return nil
}
