package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoplens_pipeline_runs_total",
			Help: "Analysis runs by outcome",
		},
		[]string{"outcome"},
	)
	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoplens_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)
	lastCustomers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shoplens_report_customers",
			Help: "Customers scored in the last successful run",
		},
	)
	lastSegments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shoplens_report_segments",
			Help: "Segments produced by the last successful run",
		},
	)
)
