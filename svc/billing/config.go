// Package billing wires subscription reconciliation to Postgres, HTTP and
// email: the Stripe webhook, the dashboard billing API and the read client.
package billing

// Config holds the billing service settings.
type Config struct {
	PlansFile     string `env:"PLANS_FILE"`
	FunnelBaseURL string `env:"FUNNEL_BASE_URL" envDefault:"http://localhost:8080"`
	DashboardURL  string `env:"DASHBOARD_URL" envDefault:"http://localhost:5173/dashboard"`
}
