package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewfunnel/pkg/logger"
)

// Result is the outcome of reconciling one event.
type Result struct {
	Outcome Outcome
	UserID  uuid.UUID
	Record  *Record
}

// Reconciler applies normalized provider events to subscription records.
type Reconciler struct {
	store    Store
	dir      Directory
	catalog  *Catalog
	parked   ParkedStore
	ledger   EventLedger
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithParkedStore parks checkout events whose email matches no user.
// Without it such events are logged and dropped.
func WithParkedStore(s ParkedStore) ReconcilerOption {
	return func(r *Reconciler) { r.parked = s }
}

// WithLedger skips events whose id the ledger has already seen.
func WithLedger(l EventLedger) ReconcilerOption {
	return func(r *Reconciler) { r.ledger = l }
}

// WithNotifier receives records that moved into past_due or canceled.
func WithNotifier(n Notifier) ReconcilerOption {
	return func(r *Reconciler) { r.notifier = n }
}

// WithLogger replaces the default logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides time.Now. A nil func is ignored.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler panics on missing collaborators to fail fast at startup.
func NewReconciler(store Store, dir Directory, catalog *Catalog, opts ...ReconcilerOption) *Reconciler {
	if store == nil {
		panic("subscription: Store is required")
	}
	if dir == nil {
		panic("subscription: Directory is required")
	}
	if catalog == nil {
		panic("subscription: Catalog is required")
	}
	r := &Reconciler{
		store:   store,
		dir:     dir,
		catalog: catalog,
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply reconciles ev. Misses, stale, terminal and ignored events return a
// nil error so the provider does not retry them; storage and identity
// failures are returned so it does.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (Result, error) {
	res, err := r.apply(ctx, ev)
	if err == nil {
		reconcileOutcomes.WithLabelValues(string(ev.Kind), string(res.Outcome)).Inc()
	}
	return res, err
}

func (r *Reconciler) apply(ctx context.Context, ev Event) (Result, error) {
	log := r.log.With(logger.EventID(ev.ID), logger.EventType(ev.ProviderType))

	if ev.Kind == KindIgnored || (ev.Kind == KindCheckoutCompleted && ev.Mode != CheckoutModeSubscription) {
		log.InfoContext(ctx, "billing event ignored", slog.String("mode", ev.Mode))
		return Result{Outcome: OutcomeIgnored}, nil
	}

	if r.ledger != nil {
		seen, err := r.ledger.Seen(ctx, ev.ID)
		if err != nil {
			log.WarnContext(ctx, "event ledger unavailable", logger.Error(err))
		}
		if seen {
			log.DebugContext(ctx, "billing event already applied")
			return Result{Outcome: OutcomeDuplicate}, nil
		}
	}

	if ev.Kind == KindCheckoutCompleted {
		userID, err := r.resolve(ctx, ev)
		if errors.Is(err, ErrUserNotFound) {
			return r.park(ctx, log, ev)
		}
		if err != nil {
			return Result{}, err
		}
		return r.commit(ctx, log, ev, userID)
	}
	return r.commit(ctx, log, ev, uuid.Nil)
}

// Redrive retries a parked checkout event. It returns ErrUserNotFound while
// the email still matches no user.
func (r *Reconciler) Redrive(ctx context.Context, ev Event) (Result, error) {
	log := r.log.With(logger.EventID(ev.ID), logger.EventType(ev.ProviderType), slog.Bool("redrive", true))
	userID, err := r.resolve(ctx, ev)
	if err != nil {
		return Result{}, err
	}
	res, err := r.commit(ctx, log, ev, userID)
	if err == nil {
		reconcileOutcomes.WithLabelValues(string(ev.Kind), string(res.Outcome)).Inc()
	}
	return res, err
}

func (r *Reconciler) resolve(ctx context.Context, ev Event) (uuid.UUID, error) {
	if ev.Email == "" {
		return uuid.Nil, ErrUserNotFound
	}
	userID, err := r.dir.LookupByEmail(ctx, ev.Email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return uuid.Nil, ErrUserNotFound
	case err != nil:
		return uuid.Nil, errors.Join(ErrIdentityLookup, err)
	}
	return userID, nil
}

func (r *Reconciler) park(ctx context.Context, log *slog.Logger, ev Event) (Result, error) {
	log = log.With(logger.Email(ev.Email))
	if r.parked == nil {
		log.WarnContext(ctx, "no user for checkout email, event dropped")
		return Result{Outcome: OutcomeMiss}, nil
	}
	if err := r.parked.Park(ctx, ev, ErrUserNotFound.Error(), r.now().UTC()); err != nil {
		log.ErrorContext(ctx, "failed to park checkout event", logger.Error(err))
		return Result{}, errors.Join(ErrParkFailed, err)
	}
	redriveResults.WithLabelValues("parked").Inc()
	log.WarnContext(ctx, "no user for checkout email, event parked")
	return Result{Outcome: OutcomeParked}, nil
}

// commit runs the transition inside the store's atomic mutation. userID is
// only used for checkout events; other kinds are keyed on subscription id.
func (r *Reconciler) commit(ctx context.Context, log *slog.Logger, ev Event, userID uuid.UUID) (Result, error) {
	now := r.now().UTC()
	var (
		outcome Outcome
		prev    Status
		applied *Record
	)
	fn := func(cur *Record) (*Record, error) {
		if cur != nil {
			prev = cur.Status
		}
		id := userID
		if cur != nil {
			id = cur.UserID
		}
		next, o := Transition(cur, id, ev, r.catalog, now)
		outcome, applied = o, next
		return next, nil
	}

	var err error
	if ev.Kind == KindCheckoutCompleted {
		err = r.store.MutateByUserID(ctx, userID, fn)
	} else if ev.SubscriptionID == "" {
		err = ErrRecordNotFound
	} else {
		err = r.store.MutateBySubscriptionID(ctx, ev.SubscriptionID, fn)
	}

	if errors.Is(err, ErrRecordNotFound) {
		log.WarnContext(ctx, "no subscription record for event", logger.SubscriptionID(ev.SubscriptionID), logger.CustomerID(ev.CustomerID))
		return Result{Outcome: OutcomeMiss}, nil
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to persist billing event",
			logger.SubscriptionID(ev.SubscriptionID), logger.UserID(userID), logger.Error(err))
		return Result{}, errors.Join(ErrStorage, err)
	}

	if outcome != OutcomeApplied {
		log.InfoContext(ctx, "billing event skipped", logger.Outcome(string(outcome)), logger.SubscriptionID(ev.SubscriptionID))
		return Result{Outcome: outcome, UserID: userID}, nil
	}

	log.InfoContext(ctx, "billing event applied",
		logger.UserID(applied.UserID),
		logger.Status(string(applied.Status)),
		logger.Plan(applied.Plan),
		logger.SubscriptionID(applied.StripeSubscriptionID))

	if r.ledger != nil {
		if err := r.ledger.Mark(ctx, ev.ID); err != nil {
			log.WarnContext(ctx, "failed to record event in ledger", logger.Error(err))
		}
	}
	if r.notifier != nil && shouldNotify(prev, applied.Status) {
		n := Notification{UserID: applied.UserID, Previous: prev, Record: applied.Clone()}
		if err := r.notifier.Notify(ctx, n); err != nil {
			log.WarnContext(ctx, "billing notification failed", logger.UserID(applied.UserID), logger.Error(err))
		}
	}
	return Result{Outcome: OutcomeApplied, UserID: applied.UserID, Record: applied}, nil
}
