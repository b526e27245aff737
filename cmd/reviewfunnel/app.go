package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/reviewfunnel/pkg/email"
	"github.com/dmitrymomot/reviewfunnel/pkg/httpserver"
	"github.com/dmitrymomot/reviewfunnel/pkg/pg"
	"github.com/dmitrymomot/reviewfunnel/pkg/redis"
	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
	"github.com/dmitrymomot/reviewfunnel/svc/billing"
	"github.com/dmitrymomot/reviewfunnel/svc/identity"
)

// app holds the wired collaborators shared by the commands.
type app struct {
	cfg        Config
	log        *slog.Logger
	pool       *pgxpool.Pool
	closers    []func()
	checks     []httpserver.Check
	catalog    *subscription.Catalog
	store      *billing.PGStore
	parked     *billing.PGParkedStore
	directory  *identity.PGDirectory
	reconciler *subscription.Reconciler
	redriver   *subscription.Redriver
}

// newApp connects storage and builds the reconciliation pipeline. Redis is
// optional and only enables the event ledger.
func newApp(ctx context.Context, cfg Config, log *slog.Logger) (*app, error) {
	catalog, err := subscription.LoadCatalog(cfg.Billing.PlansFile)
	if err != nil {
		return nil, err
	}

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a := &app{
		cfg:       cfg,
		log:       log,
		pool:      pool,
		closers:   []func(){pool.Close},
		checks:    []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}},
		catalog:   catalog,
		store:     billing.NewPGStore(pool),
		parked:    billing.NewPGParkedStore(pool),
		directory: identity.NewPGDirectory(pool),
	}

	opts := []subscription.ReconcilerOption{
		subscription.WithParkedStore(a.parked),
		subscription.WithLogger(log),
	}

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks = append(a.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		opts = append(opts, subscription.WithLedger(subscription.NewRedisLedger(client, 0)))
	} else {
		log.InfoContext(ctx, "redis not configured, event ledger disabled")
	}

	sender, err := email.New(cfg.Email, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("email sender: %w", err)
	}
	opts = append(opts, subscription.WithNotifier(billing.NewEmailNotifier(sender, a.directory, cfg.Billing.DashboardURL)))

	a.reconciler = subscription.NewReconciler(a.store, a.directory, catalog, opts...)
	a.redriver = subscription.NewRedriver(a.reconciler, a.parked,
		subscription.WithRedriveConfig(cfg.Redrive),
		subscription.WithRedriveLogger(log),
	)
	return a, nil
}

// Close releases connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// withApp wires the app, runs fn and releases the connections.
func withApp(ctx context.Context, cfg Config, log *slog.Logger, fn func(*app) error) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
