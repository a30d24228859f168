// Package metrics defines Prometheus metrics for the scan pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan metrics
var (
	// ScansCreatedTotal tracks scans created by origin (api or scheduler)
	ScansCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_created_total",
			Help: "Total number of scans created by origin",
		},
		[]string{"origin", "profile"},
	)

	// ScansRejectedTotal tracks scan creation rejections by reason
	ScansRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_rejected_total",
			Help: "Total number of rejected scan creations by reason",
		},
		[]string{"reason"},
	)

	// ScanTransitionsTotal tracks scan status transitions
	ScanTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_transitions_total",
			Help: "Total number of scan status transitions",
		},
		[]string{"to"},
	)

	// ScanDuration tracks end-to-end scan duration
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_duration_seconds",
			Help:    "Scan duration from start to terminal status in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
)

// Scheduler metrics
var (
	// SchedulerTicksTotal tracks scheduler tick executions
	SchedulerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Total number of scheduler ticks executed",
		},
	)

	// SchedulerTicksSkipped tracks ticks skipped because the prior one was still running
	SchedulerTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_skipped_total",
			Help: "Total number of scheduler ticks skipped due to overlap",
		},
	)

	// SchedulerTickDuration tracks tick duration
	SchedulerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_tick_duration_seconds",
			Help:    "Scheduler tick duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	// SchedulerTargetErrors tracks per-target scheduling failures
	SchedulerTargetErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_target_errors_total",
			Help: "Total number of per-target scheduling failures",
		},
	)
)

// Dispatch metrics
var (
	// DispatchesTotal tracks dispatch attempts by outcome
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_dispatches_total",
			Help: "Total number of scan dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Reconciler metrics
var (
	// ReconcilerMessagesTotal tracks result messages by status
	ReconcilerMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_messages_total",
			Help: "Total number of engine result messages by status",
		},
		[]string{"status"},
	)

	// ReconcilerDiscardedTotal tracks discarded result messages by reason
	ReconcilerDiscardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_discarded_total",
			Help: "Total number of discarded result messages by reason",
		},
		[]string{"reason"},
	)

	// ReconcilerFindingsTotal tracks findings persisted from completed scans
	ReconcilerFindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_findings_total",
			Help: "Total number of findings persisted by severity",
		},
		[]string{"severity"},
	)
)

// Webhook metrics
var (
	// WebhookDeliveriesTotal tracks webhook deliveries by outcome
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	// WebhookDeliveryDuration tracks delivery duration
	WebhookDeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_duration_seconds",
			Help:    "Webhook delivery duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Alert metrics
var (
	// AlertRulesTriggered tracks alert rule triggers by channel
	AlertRulesTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_rules_triggered_total",
			Help: "Total number of alert rule triggers by channel",
		},
		[]string{"channel"},
	)
)

// Quota metrics
var (
	// QuotaResetsTotal tracks monthly usage counter resets
	QuotaResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_resets_total",
			Help: "Total number of monthly quota reset runs",
		},
	)
)
