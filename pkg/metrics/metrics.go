// Package metrics exposes the orchestration core's counters and gauges in
// Prometheus exposition format, grounded on the pack's
// pkg/infrastructure/metrics usage (promauto-registered vectors scraped via
// promhttp.Handler on a dedicated endpoint).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth reports the number of queued (not yet leased) items per
	// named queue (spec.md §4.2's Depth counter).
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bridge_queue_depth",
		Help: "Number of queued items waiting to be leased, by queue name.",
	}, []string{"queue"})

	// QueueInflight reports the number of leased-but-unacked items per
	// named queue.
	QueueInflight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bridge_queue_inflight",
		Help: "Number of leased items awaiting ack/nack, by queue name.",
	}, []string{"queue"})

	// QueueTotal counts enqueue/ack/nack/dead-letter events per queue.
	QueueTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_queue_events_total",
		Help: "Cumulative queue lifecycle events, by queue name and event type.",
	}, []string{"queue", "event"})

	// SchedulerEnabled reports 1 when the cooperative scheduler is running,
	// 0 when stopped (spec.md §4.5 start/stop).
	SchedulerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_scheduler_enabled",
		Help: "1 if the planner/executor/auditor scheduler is currently running.",
	})

	// CommitterApplied counts patches the Committer has applied, one per
	// patch in each applied bundle (spec.md §4.4).
	CommitterApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_committer_patches_applied_total",
		Help: "Cumulative count of patches applied by the single-writer Committer.",
	})

	// PendingActionsOutstanding reports the number of pending actions that
	// have not yet been acknowledged by a client (spec.md §4.8's lease
	// store).
	PendingActionsOutstanding = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_pending_actions_outstanding",
		Help: "Number of pending actions leased or queued but not yet acknowledged.",
	})
)
