package analysis

import (
	"github.com/montanaflynn/stats"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

// anomalySignal extracts one aggregated field from a window. Each signal is
// detected against its own baseline, independently of the others.
type anomalySignal struct {
	name  string
	value func(models.TimelineWindow) float64
}

var anomalySignals = []anomalySignal{
	{"cpu", func(w models.TimelineWindow) float64 { return w.CPU }},
	{"memory_mb", func(w models.TimelineWindow) float64 { return w.MemoryMB }},
	{"p99", func(w models.TimelineWindow) float64 { return w.P99 }},
	{"errors_5xx", func(w models.TimelineWindow) float64 { return w.Errors5xx }},
	{"error_logs", func(w models.TimelineWindow) float64 { return float64(w.ErrorLogCount) }},
}

// DetectAnomalies flags windows whose value for any signal strictly exceeds
// that signal's mean + 2 population standard deviations across the whole
// window set. The window set is the entire population under analysis, hence
// the N divisor rather than N-1.
//
// The input windows are not mutated. Five independent flag sets are computed
// and OR-folded into the returned copy, so no partially-flagged intermediate
// state is ever observable. A signal with zero variance flags nothing: a
// completely quiet signal has no outliers, only a constant.
func DetectAnomalies(windows []models.TimelineWindow) []models.TimelineWindow {
	if len(windows) == 0 {
		return windows
	}

	flagged := make([]bool, len(windows))
	values := make([]float64, len(windows))

	for _, sig := range anomalySignals {
		for i, w := range windows {
			values[i] = sig.value(w)
		}

		mean, err := stats.Mean(values)
		if err != nil {
			continue
		}
		stddev, err := stats.StandardDeviationPopulation(values)
		if err != nil || stddev == 0 {
			continue
		}

		threshold := mean + 2*stddev
		for i, v := range values {
			if v > threshold {
				flagged[i] = true
			}
		}
	}

	out := make([]models.TimelineWindow, len(windows))
	copy(out, windows)
	for i := range out {
		out[i].IsAnomaly = flagged[i]
	}
	return out
}
