package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/reviewfunnel/pkg/logger"
	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
	"github.com/dmitrymomot/reviewfunnel/svc/billing"
)

func newStatusCmd() *cobra.Command {
	var (
		apiURL   string
		token    string
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the access tier of the token's user through the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				token = os.Getenv("REVIEWFUNNEL_TOKEN")
			}
			if token == "" {
				return fmt.Errorf("a bearer token is required (--token or REVIEWFUNNEL_TOKEN)")
			}
			out := cmd.OutOrStdout()
			tracker := subscription.NewTracker(billing.NewClient(apiURL, token, nil),
				subscription.WithPollInterval(interval),
				subscription.WithTrackerLogger(logger.New(logger.WithFormat(logger.FormatText), logger.WithOutput(cmd.ErrOrStderr()))),
			)

			if !watch {
				if err := tracker.Refresh(cmd.Context()); err != nil {
					return err
				}
				printAccess(out, tracker)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() { _ = tracker.Run(ctx) }()

			var last time.Time
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if fetched := tracker.LastFetched(); fetched.After(last) {
						last = fetched
						printAccess(out, tracker)
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep polling and print every refresh")
	cmd.Flags().DurationVar(&interval, "interval", subscription.DefaultPollInterval, "poll interval with --watch")
	return cmd
}

func printAccess(w io.Writer, t *subscription.Tracker) {
	a := t.Access(time.Now())
	plan := "-"
	if rec := t.Record(); rec != nil && rec.Plan != "" {
		plan = rec.Plan
	}
	fmt.Fprintf(w, "tier=%s days_left=%d subscribed=%t super_admin=%t plan=%s\n",
		a.Tier, a.DaysLeft, a.Subscribed, a.SuperAdmin, plan)
}
