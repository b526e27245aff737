package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/reviewfunnel/pkg/environment"
	"github.com/dmitrymomot/reviewfunnel/pkg/httpserver"
	"github.com/dmitrymomot/reviewfunnel/pkg/jwt"
	"github.com/dmitrymomot/reviewfunnel/pkg/requestid"
	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
	"github.com/dmitrymomot/reviewfunnel/svc/billing"
)

var errMissingJWTSecret = errors.New("JWT_SECRET is required to serve the API")

func newServeCmd() *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Stripe webhook and the redrive worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			if cfg.JWTSecret == "" {
				return errMissingJWTSecret
			}
			tokens, err := jwt.New(cfg.JWTSecret)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, cfg, log, func(a *app) error {
				if !skipMigrations {
					if err := a.migrate(ctx); err != nil {
						return err
					}
				}
				provider, err := subscription.NewStripeProvider(cfg.Stripe)
				if err != nil {
					return err
				}
				h := billing.NewHandler(billing.Deps{
					Provider:   provider,
					Reconciler: a.reconciler,
					Store:      a.store,
					Directory:  a.directory,
					Users:      a.directory,
					Catalog:    a.catalog,
					Tokens:     tokens,
					FunnelBase: cfg.Billing.FunnelBaseURL,
					Logger:     log,
				})
				router := newRouter(environment.Normalize(cfg.Env), log, h.Routes(), a.checks...)
				srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return srv.Run(ctx, router) })
				g.Go(func() error { return a.redriver.Run(ctx) })
				if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")
	return cmd
}

// newRouter mounts the operational endpoints next to the billing routes.
func newRouter(env environment.Environment, log *slog.Logger, api http.Handler, checks ...httpserver.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(environment.Middleware(env))

	r.Get("/healthz", httpserver.HealthCheckHandler(log, checks...))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", api)
	return r
}
