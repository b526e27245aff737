package subscription

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/reviewfunnel/pkg/logger"
)

// Fetcher loads the caller's current record. A nil record with a nil error
// means the user has none yet.
type Fetcher interface {
	Fetch(ctx context.Context) (*Record, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*Record, error)

func (f FetcherFunc) Fetch(ctx context.Context) (*Record, error) { return f(ctx) }

// DefaultPollInterval bounds how stale a tracked record can be.
const DefaultPollInterval = 60 * time.Second

// Tracker owns a cached copy of one user's record, refreshed on a fixed
// interval and on demand. Fetch failures keep the previous value; with no
// value at all, Access reports the default trial tier.
type Tracker struct {
	fetcher  Fetcher
	policy   AccessPolicy
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
	kick     chan struct{}

	mu      sync.RWMutex
	rec     *Record
	fetched time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithTrackerPolicy(p AccessPolicy) TrackerOption {
	return func(t *Tracker) { t.policy = p }
}

func WithTrackerLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTracker(f Fetcher, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		fetcher:  f,
		interval: DefaultPollInterval,
		log:      logger.Nop(),
		now:      time.Now,
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Refresh fetches the record now. On error the cached value is kept.
func (t *Tracker) Refresh(ctx context.Context) error {
	rec, err := t.fetcher.Fetch(ctx)
	if err != nil {
		t.log.WarnContext(ctx, "subscription refresh failed, keeping cached value", logger.Error(err))
		return err
	}
	t.mu.Lock()
	t.rec = rec.Clone()
	t.fetched = t.now()
	t.mu.Unlock()
	return nil
}

// Invalidate asks a running loop to refetch immediately.
func (t *Tracker) Invalidate() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Access derives the tier of the cached record at now.
func (t *Tracker) Access(now time.Time) Access {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.policy.Evaluate(t.rec, now)
}

// Record returns a copy of the cached record.
func (t *Tracker) Record() *Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rec.Clone()
}

// LastFetched is zero until the first successful refresh.
func (t *Tracker) LastFetched() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fetched
}

// Run refreshes immediately, then every interval and after each
// Invalidate, until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		_ = t.Refresh(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-t.kick:
			ticker.Reset(t.interval)
		}
	}
}
