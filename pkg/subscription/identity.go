package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Directory resolves billing emails to users and back.
type Directory interface {
	// LookupByEmail returns ErrUserNotFound on a miss. Other errors are
	// infrastructure failures.
	LookupByEmail(ctx context.Context, email string) (uuid.UUID, error)
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}
