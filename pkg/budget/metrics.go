package budget

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var budgetRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "maestro_budget_rejections_total",
		Help: "Total admission rejections by reason",
	},
	[]string{"reason"},
)
