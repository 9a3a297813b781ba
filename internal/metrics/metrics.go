package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsReceived counts accepted sensor submissions.
	ReadingsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jemuran_readings_received_total",
			Help: "Total number of sensor readings accepted",
		},
	)

	// DecisionsTotal counts resolver outcomes by effective status and mode.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jemuran_decisions_total",
			Help: "Total number of decision cycles by status and mode",
		},
		[]string{"status", "mode"},
	)

	// PredictionsTotal counts classifier outputs by label, sentinel included.
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jemuran_predictions_total",
			Help: "Total number of classifier predictions by label",
		},
		[]string{"label"},
	)

	// ModelDegraded is 1 while the classifier serves sentinel results.
	ModelDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jemuran_model_degraded",
			Help: "Whether the classifier artifact is unavailable (1) or loaded (0)",
		},
	)

	// DecisionDuration measures the classify-resolve-persist cycle.
	DecisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jemuran_decision_duration_seconds",
			Help:    "Duration of one decision cycle in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// SubmitFailures counts readings rejected at the storage boundary.
	SubmitFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jemuran_submit_failures_total",
			Help: "Total number of sensor submissions that failed to persist",
		},
	)
)
