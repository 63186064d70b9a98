package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	analysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telemetry_insight",
		Subsystem: "engine",
		Name:      "analyses_total",
		Help:      "Count of analysis runs by outcome",
	}, []string{"status"})

	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "telemetry_insight",
		Subsystem: "engine",
		Name:      "analysis_duration_seconds",
		Help:      "Wall time of one full analysis run",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	anomalyWindowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "telemetry_insight",
		Subsystem: "engine",
		Name:      "anomaly_windows_total",
		Help:      "Count of timeline windows flagged anomalous",
	})
)

func init() {
	prometheus.MustRegister(analysesTotal, analysisDuration, anomalyWindowsTotal)
}
