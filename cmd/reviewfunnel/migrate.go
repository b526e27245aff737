package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/reviewfunnel/db"
	"github.com/dmitrymomot/reviewfunnel/pkg/pg"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			pool, err := pg.Connect(ctx, cfg.PG)
			if err != nil {
				return err
			}
			defer pool.Close()
			return pg.Migrate(ctx, pool, db.Migrations, db.MigrationsDir, cfg.PG, log)
		},
	}
}

func (a *app) migrate(ctx context.Context) error {
	return pg.Migrate(ctx, a.pool, db.Migrations, db.MigrationsDir, a.cfg.PG, a.log)
}
