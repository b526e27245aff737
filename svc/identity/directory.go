// Package identity maps users to billing emails and authenticates dashboard
// requests with bearer tokens.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/reviewfunnel/pkg/pg"
	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

// PGDirectory is the users table mirror of the identity provider.
type PGDirectory struct {
	pool *pgxpool.Pool
}

func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

// LookupByEmail implements subscription.Directory.
func (d *PGDirectory) LookupByEmail(ctx context.Context, addr string) (uuid.UUID, error) {
	norm, err := NormalizeEmail(addr)
	if err != nil {
		return uuid.Nil, subscription.ErrUserNotFound
	}
	var id uuid.UUID
	err = d.pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, norm).Scan(&id)
	if pg.IsNotFoundError(err) {
		return uuid.Nil, subscription.ErrUserNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup user by email: %w", err)
	}
	return id, nil
}

// EmailFor implements subscription.Directory.
func (d *PGDirectory) EmailFor(ctx context.Context, userID uuid.UUID) (string, error) {
	var addr string
	err := d.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&addr)
	if pg.IsNotFoundError(err) {
		return "", subscription.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup user email: %w", err)
	}
	return addr, nil
}

// Upsert records a user mirrored from the identity provider. An address
// already owned by another id is rejected.
func (d *PGDirectory) Upsert(ctx context.Context, userID uuid.UUID, addr string) error {
	norm, err := NormalizeEmail(addr)
	if err != nil {
		return err
	}
	_, err = d.pool.Exec(ctx, `
		INSERT INTO users (id, email, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`,
		userID, norm)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(ErrInvalidEmail, fmt.Errorf("email %s belongs to another user", norm))
	}
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
