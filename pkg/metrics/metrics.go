// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionhub_action_executions_total",
			Help: "Total number of action executions by connector and outcome",
		},
		[]string{"connector", "outcome"},
	)

	ActionExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "actionhub_action_execution_duration_seconds",
			Help:    "Duration of connector calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connector"},
	)

	ActionExecutionTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionhub_action_execution_timeouts_total",
			Help: "Total number of connector calls abandoned after their timeout",
		},
		[]string{"connector"},
	)

	PluginInstallations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionhub_plugin_installations_total",
			Help: "Total number of local plugin installations by outcome",
		},
		[]string{"plugin", "outcome"},
	)

	ActiveDatasourceConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "actionhub_datasource_connections_active",
			Help: "Number of cached datasource connections",
		},
	)
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)
