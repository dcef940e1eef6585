// Package metrics holds the scheduler's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Trigger labels for RunsTotal.
const (
	TriggerOperator = "operator"
	TriggerTicker   = "ticker"
	TriggerCron     = "cron"
	TriggerExternal = "external"
)

// Command result labels.
const (
	ResultApplied = "applied"
	ResultFailed  = "failed"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "preheat",
		Name:      "due_runs_total",
		Help:      "Due-schedule passes, by trigger.",
	}, []string{"trigger"})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "preheat",
		Name:      "commands_total",
		Help:      "Thermostat commands issued, by entry type and result.",
	}, []string{"type", "result"})

	CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "preheat",
		Name:      "command_duration_seconds",
		Help:      "Latency of thermostat adapter calls.",
		Buckets:   prometheus.DefBuckets,
	})

	GeneratedEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "preheat",
		Name:      "generated_entries_total",
		Help:      "Schedule entries persisted by the generator.",
	})

	SkippedReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "preheat",
		Name:      "skipped_reservations_total",
		Help:      "Reservations that produced no entries, by reason.",
	}, []string{"reason"})
)
