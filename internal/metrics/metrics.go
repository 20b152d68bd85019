package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommitsIngested counts commits accepted by the webhook/sync ingress,
	// after URL deduplication.
	CommitsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devtrack_commits_ingested_total",
		Help: "Number of new commits recorded from pushes and syncs.",
	})

	// TasksReconciled counts task mutations applied by commit automation.
	TasksReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devtrack_tasks_reconciled_total",
		Help: "Number of tasks changed by commit automation.",
	})

	// AutomationSkips counts commits that produced no automation, by reason.
	AutomationSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devtrack_automation_skips_total",
		Help: "Commits skipped by automation, partitioned by reason.",
	}, []string{"reason"})

	// PublishFailures counts failed channel publishes. Publishes are
	// fire-and-forget, so these are logged but never fail a request.
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devtrack_publish_failures_total",
		Help: "Number of failed event publishes.",
	})

	// WSConnections tracks currently connected websocket clients.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devtrack_ws_connections",
		Help: "Currently connected websocket clients.",
	})
)
