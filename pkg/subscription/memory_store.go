package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]*Record), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) GetBySubscriptionID(_ context.Context, subscriptionID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.bySubscription(subscriptionID); rec != nil {
		return rec.Clone(), nil
	}
	return nil, ErrRecordNotFound
}

func (s *MemoryStore) MutateByUserID(_ context.Context, userID uuid.UUID, fn MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(userID, s.records[userID], fn)
}

func (s *MemoryStore) MutateBySubscriptionID(_ context.Context, subscriptionID string, fn MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.bySubscription(subscriptionID)
	if rec == nil {
		return ErrRecordNotFound
	}
	return s.mutate(rec.UserID, rec, fn)
}

func (s *MemoryStore) EnsureTrial(_ context.Context, userID uuid.UUID, trialEndsAt time.Time) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	ends := trialEndsAt.UTC()
	if rec, ok := s.records[userID]; ok {
		if needsTrialEnd(rec) {
			rec.TrialEndsAt = &ends
			rec.UpdatedAt = now
		}
		return rec.Clone(), false, nil
	}
	rec := &Record{UserID: userID, Status: StatusTrialing, TrialEndsAt: &ends, CreatedAt: now, UpdatedAt: now}
	s.records[userID] = rec
	return rec.Clone(), true, nil
}

func (s *MemoryStore) SetSuperAdmin(_ context.Context, userID uuid.UUID, enabled bool, trialEndsAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	rec, ok := s.records[userID]
	if !ok {
		if !enabled {
			return nil
		}
		rec = NewTrial(userID, now, 0)
		ends := trialEndsAt.UTC()
		rec.TrialEndsAt = &ends
		s.records[userID] = rec
	}
	rec.IsSuperAdmin = enabled
	rec.UpdatedAt = now
	return nil
}

func (s *MemoryStore) mutate(userID uuid.UUID, cur *Record, fn MutateFunc) error {
	next, err := fn(cur.Clone())
	if err != nil || next == nil {
		return err
	}
	if other := s.bySubscription(next.StripeSubscriptionID); other != nil && other.UserID != userID {
		return ErrStorage
	}
	next = next.Clone()
	next.UserID = userID
	s.records[userID] = next
	return nil
}

func (s *MemoryStore) bySubscription(id string) *Record {
	if id == "" {
		return nil
	}
	for _, rec := range s.records {
		if rec.StripeSubscriptionID == id {
			return rec
		}
	}
	return nil
}

// needsTrialEnd reports a trialing record that never got a trial end and
// was never linked to a provider subscription.
func needsTrialEnd(rec *Record) bool {
	return rec.Status == StatusTrialing && rec.TrialEndsAt == nil && rec.StripeSubscriptionID == ""
}
