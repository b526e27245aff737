package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/reviewfunnel/pkg/config"
	"github.com/dmitrymomot/reviewfunnel/pkg/email"
	"github.com/dmitrymomot/reviewfunnel/pkg/environment"
	"github.com/dmitrymomot/reviewfunnel/pkg/httpserver"
	"github.com/dmitrymomot/reviewfunnel/pkg/logger"
	"github.com/dmitrymomot/reviewfunnel/pkg/pg"
	"github.com/dmitrymomot/reviewfunnel/pkg/redis"
	"github.com/dmitrymomot/reviewfunnel/pkg/requestid"
	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
	"github.com/dmitrymomot/reviewfunnel/svc/billing"
)

// Config is the process configuration assembled from the package configs.
type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"reviewfunnel"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	JWTSecret string `env:"JWT_SECRET"`

	PG      pg.Config
	Redis   redis.Config
	HTTP    httpserver.Config
	Email   email.Config
	Stripe  subscription.StripeConfig
	Redrive subscription.RedriveConfig
	Billing billing.Config
}

// loadConfig reads dotenv files named by --env-file, then the environment.
func loadConfig(cmd *cobra.Command) (Config, error) {
	files, _ := cmd.Flags().GetStringSlice("env-file")
	if existing := existingFiles(files); len(existing) > 0 {
		if err := config.LoadEnv(existing...); err != nil {
			return Config{}, err
		}
	}
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func existingFiles(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func newLogger(cfg Config) *slog.Logger {
	env := environment.Normalize(cfg.Env)
	log := logger.New(
		logger.WithEnvironment(env, cfg.AppName),
		logger.WithContextExtractors(
			logger.StringExtractor("request_id", requestid.FromContext),
		),
	)
	logger.SetAsDefault(log)
	return log
}
