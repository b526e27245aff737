package subscription

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ParkedEvent is a checkout event whose email matched no user.
type ParkedEvent struct {
	EventID       string
	Email         string
	Event         Event
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	ResolvedAt    *time.Time
	AbandonedAt   *time.Time
	CreatedAt     time.Time
}

// ParkedStore is the dead-letter store for unresolved events.
type ParkedStore interface {
	// Park stores ev for a later retry. Parking the same event id twice keeps
	// the first entry.
	Park(ctx context.Context, ev Event, reason string, nextAttemptAt time.Time) error
	// Due lists pending events whose next attempt is at or before now,
	// oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]ParkedEvent, error)
	Resolve(ctx context.Context, eventID string, at time.Time) error
	Reschedule(ctx context.Context, eventID string, attempts int, lastError string, next time.Time) error
	Abandon(ctx context.Context, eventID string, attempts int, lastError string, at time.Time) error
}

// MemoryParkedStore is an in-process ParkedStore.
type MemoryParkedStore struct {
	mu     sync.Mutex
	events map[string]*ParkedEvent
}

func NewMemoryParkedStore() *MemoryParkedStore {
	return &MemoryParkedStore{events: make(map[string]*ParkedEvent)}
}

func (s *MemoryParkedStore) Park(_ context.Context, ev Event, reason string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; ok {
		return nil
	}
	s.events[ev.ID] = &ParkedEvent{
		EventID:       ev.ID,
		Email:         ev.Email,
		Event:         ev,
		LastError:     reason,
		NextAttemptAt: next,
		CreatedAt:     time.Now().UTC(),
	}
	return nil
}

func (s *MemoryParkedStore) Due(_ context.Context, now time.Time, limit int) ([]ParkedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ParkedEvent
	for _, p := range s.events {
		if p.ResolvedAt != nil || p.AbandonedAt != nil || p.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryParkedStore) Resolve(_ context.Context, eventID string, at time.Time) error {
	return s.update(eventID, func(p *ParkedEvent) { p.ResolvedAt = &at })
}

func (s *MemoryParkedStore) Reschedule(_ context.Context, eventID string, attempts int, lastError string, next time.Time) error {
	return s.update(eventID, func(p *ParkedEvent) {
		p.Attempts = attempts
		p.LastError = lastError
		p.NextAttemptAt = next
	})
}

func (s *MemoryParkedStore) Abandon(_ context.Context, eventID string, attempts int, lastError string, at time.Time) error {
	return s.update(eventID, func(p *ParkedEvent) {
		p.Attempts = attempts
		p.LastError = lastError
		p.AbandonedAt = &at
	})
}

// Get returns a copy of the parked event.
func (s *MemoryParkedStore) Get(eventID string) (ParkedEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.events[eventID]
	if !ok {
		return ParkedEvent{}, false
	}
	return *p, true
}

func (s *MemoryParkedStore) update(eventID string, fn func(*ParkedEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.events[eventID]
	if !ok {
		return ErrParkedNotFound
	}
	fn(p)
	return nil
}
