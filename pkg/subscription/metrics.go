package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts webhook requests by provider event type
	// and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewfunnel",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Billing webhook requests by event type and response status.",
	}, []string{"event_type", "status"})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reviewfunnel",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Billing webhook handling latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	reconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewfunnel",
		Subsystem: "billing",
		Name:      "reconcile_outcomes_total",
		Help:      "Reconciliation outcomes by event kind.",
	}, []string{"kind", "outcome"})

	redriveResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewfunnel",
		Subsystem: "billing",
		Name:      "redrive_results_total",
		Help:      "Dead-letter redrive attempts by result.",
	}, []string{"result"})
)
