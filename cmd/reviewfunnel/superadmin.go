package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/reviewfunnel/pkg/logger"
)

func newSuperAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "superadmin",
		Short: "Grant or revoke the billing bypass for a user",
	}
	cmd.AddCommand(
		superAdminToggleCmd("grant", true),
		superAdminToggleCmd("revoke", false),
	)
	return cmd
}

func superAdminToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: fmt.Sprintf("%s super admin access", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			return withApp(ctx, cfg, log, func(a *app) error {
				trialEnds := time.Now().AddDate(0, 0, a.catalog.TrialDays())
				if err := a.store.SetSuperAdmin(ctx, userID, enabled, trialEnds); err != nil {
					return err
				}
				log.InfoContext(ctx, "super admin updated", logger.UserID(userID), "enabled", enabled)
				return nil
			})
		},
	}
}
