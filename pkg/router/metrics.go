package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maestro_task_executions_total",
			Help: "Total task execution attempts by tier, backend, and outcome",
		},
		[]string{"tier", "backend", "outcome"},
	)

	fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maestro_task_fallbacks_total",
			Help: "Total fallback attempts to a tier's secondary backend",
		},
		[]string{"tier"},
	)
)
