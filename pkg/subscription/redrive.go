package subscription

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/dmitrymomot/reviewfunnel/pkg/logger"
)

// Backoff computes the delay before the next redrive attempt:
// min(Initial * Multiplier^(attempt-1) * (1 ± Jitter), Max).
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultBackoff starts at one minute and caps at six hours.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Minute, Max: 6 * time.Hour, Multiplier: 2, Jitter: 0.1}
}

func (b Backoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	initial, maxInterval, mult := b.Initial, b.Max, b.Multiplier
	if initial <= 0 {
		initial = time.Minute
	}
	if maxInterval <= 0 {
		maxInterval = 6 * time.Hour
	}
	if mult <= 0 {
		mult = 2
	}

	interval := float64(initial) * math.Pow(mult, float64(attempt-1))
	if b.Jitter > 0 {
		interval *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	if interval > float64(maxInterval) {
		interval = float64(maxInterval)
	}
	return time.Duration(interval)
}

// RedriveStats summarizes one redrive pass.
type RedriveStats struct {
	Resolved    int
	Rescheduled int
	Abandoned   int
}

// Redriver retries parked checkout events until their email resolves or
// MaxAttempts is reached.
type Redriver struct {
	rec         *Reconciler
	parked      ParkedStore
	backoff     Backoff
	maxAttempts int
	batch       int
	interval    time.Duration
	log         *slog.Logger
	now         func() time.Time
}

// RedriveConfig holds the worker settings.
type RedriveConfig struct {
	Interval    time.Duration `env:"REDRIVE_INTERVAL" envDefault:"1m"`
	MaxAttempts int           `env:"REDRIVE_MAX_ATTEMPTS" envDefault:"12"`
	BatchSize   int           `env:"REDRIVE_BATCH_SIZE" envDefault:"50"`
}

// RedriverOption configures a Redriver.
type RedriverOption func(*Redriver)

func WithRedriveConfig(cfg RedriveConfig) RedriverOption {
	return func(d *Redriver) {
		if cfg.Interval > 0 {
			d.interval = cfg.Interval
		}
		if cfg.MaxAttempts > 0 {
			d.maxAttempts = cfg.MaxAttempts
		}
		if cfg.BatchSize > 0 {
			d.batch = cfg.BatchSize
		}
	}
}

func WithBackoff(b Backoff) RedriverOption {
	return func(d *Redriver) { d.backoff = b }
}

func WithRedriveLogger(l *slog.Logger) RedriverOption {
	return func(d *Redriver) {
		if l != nil {
			d.log = l
		}
	}
}

func WithRedriveClock(now func() time.Time) RedriverOption {
	return func(d *Redriver) {
		if now != nil {
			d.now = now
		}
	}
}

func NewRedriver(rec *Reconciler, parked ParkedStore, opts ...RedriverOption) *Redriver {
	if rec == nil || parked == nil {
		panic("subscription: Reconciler and ParkedStore are required")
	}
	d := &Redriver{
		rec:         rec,
		parked:      parked,
		backoff:     DefaultBackoff(),
		maxAttempts: 12,
		batch:       50,
		interval:    time.Minute,
		log:         logger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With(logger.Component("redrive"))
	return d
}

// RunOnce processes the events due now. Errors from individual events are
// recorded on the event; only a failure to list or update the store is
// returned.
func (d *Redriver) RunOnce(ctx context.Context) (RedriveStats, error) {
	var stats RedriveStats
	now := d.now().UTC()
	due, err := d.parked.Due(ctx, now, d.batch)
	if err != nil {
		return stats, errors.Join(ErrStorage, err)
	}

	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		log := d.log.With(logger.EventID(p.EventID), logger.Email(p.Email))

		_, applyErr := d.rec.Redrive(ctx, p.Event)
		if applyErr == nil {
			if err := d.parked.Resolve(ctx, p.EventID, now); err != nil {
				return stats, errors.Join(ErrStorage, err)
			}
			stats.Resolved++
			redriveResults.WithLabelValues("resolved").Inc()
			log.InfoContext(ctx, "parked event resolved", logger.Attempts(p.Attempts+1))
			continue
		}

		attempts := p.Attempts + 1
		if attempts >= d.maxAttempts {
			if err := d.parked.Abandon(ctx, p.EventID, attempts, applyErr.Error(), now); err != nil {
				return stats, errors.Join(ErrStorage, err)
			}
			stats.Abandoned++
			redriveResults.WithLabelValues("abandoned").Inc()
			log.ErrorContext(ctx, "parked event abandoned", logger.Attempts(attempts), logger.Error(applyErr))
			continue
		}

		next := now.Add(d.backoff.NextInterval(attempts))
		if err := d.parked.Reschedule(ctx, p.EventID, attempts, applyErr.Error(), next); err != nil {
			return stats, errors.Join(ErrStorage, err)
		}
		stats.Rescheduled++
		redriveResults.WithLabelValues("rescheduled").Inc()
		log.WarnContext(ctx, "parked event still unresolved",
			logger.Attempts(attempts), slog.Time("next_attempt_at", next), logger.Error(applyErr))
	}
	return stats, nil
}

// Run calls RunOnce every interval until ctx is done.
func (d *Redriver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.InfoContext(ctx, "redrive worker started", slog.Duration("interval", d.interval))
	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.ErrorContext(ctx, "redrive pass failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			d.log.InfoContext(ctx, "redrive worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}
