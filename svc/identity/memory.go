package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
)

// MemoryDirectory is an in-process directory for tests and local runs.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byEmail map[string]uuid.UUID
	byID    map[uuid.UUID]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{byEmail: map[string]uuid.UUID{}, byID: map[uuid.UUID]string{}}
}

func (d *MemoryDirectory) Upsert(_ context.Context, userID uuid.UUID, addr string) error {
	norm, err := NormalizeEmail(addr)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if owner, ok := d.byEmail[norm]; ok && owner != userID {
		return ErrInvalidEmail
	}
	if old, ok := d.byID[userID]; ok {
		delete(d.byEmail, old)
	}
	d.byEmail[norm] = userID
	d.byID[userID] = norm
	return nil
}

func (d *MemoryDirectory) LookupByEmail(_ context.Context, addr string) (uuid.UUID, error) {
	norm, err := NormalizeEmail(addr)
	if err != nil {
		return uuid.Nil, subscription.ErrUserNotFound
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[norm]
	if !ok {
		return uuid.Nil, subscription.ErrUserNotFound
	}
	return id, nil
}

func (d *MemoryDirectory) EmailFor(_ context.Context, userID uuid.UUID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	addr, ok := d.byID[userID]
	if !ok {
		return "", subscription.ErrUserNotFound
	}
	return addr, nil
}
