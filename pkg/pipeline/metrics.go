package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maestro_workflow_outcomes_total",
			Help: "Total finished workflows by terminal status",
		},
		[]string{"status"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maestro_stage_duration_seconds",
			Help:    "Wall-clock duration of completed pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"stage"},
	)
)
