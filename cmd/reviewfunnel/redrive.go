package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRedriveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redrive",
		Short: "Retry parked checkout events once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			return withApp(ctx, cfg, log, func(a *app) error {
				stats, err := a.redriver.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "resolved=%d rescheduled=%d abandoned=%d\n",
					stats.Resolved, stats.Rescheduled, stats.Abandoned)
				return nil
			})
		},
	}
}
