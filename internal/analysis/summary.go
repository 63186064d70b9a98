package analysis

import (
	"github.com/kloudmate/telemetry-insight/internal/models"
)

// Summarize reduces a named series into avg/min/max/latest/count. Latest is
// the last element in arrival order, not the maximum timestamp; upstream
// readers deliver streams in chronological order, and the engine trusts that
// ordering rather than re-sorting.
//
// An empty series yields the zero summary with Count == 0. No data is not an
// error here.
func Summarize(name string, samples []models.Sample) models.MetricSummary {
	summary := models.MetricSummary{
		Name:       name,
		RawSamples: samples,
	}

	if len(samples) == 0 {
		return summary
	}

	min := samples[0].Value
	max := samples[0].Value
	sum := 0.0

	for _, s := range samples {
		if s.Value < min {
			min = s.Value
		}
		if s.Value > max {
			max = s.Value
		}
		sum += s.Value
	}

	summary.Min = min
	summary.Max = max
	summary.Avg = sum / float64(len(samples))
	summary.Latest = samples[len(samples)-1].Value
	summary.Count = len(samples)

	return summary
}

// SummarizePercentile reduces a latency series over one percentile selector.
// It must be called once per selector to build the full latency summary; each
// call is independent and empty-input-safe like Summarize.
func SummarizePercentile(name string, samples []models.LatencySample, p models.Percentile) models.MetricSummary {
	scalars := make([]models.Sample, len(samples))
	for i, ls := range samples {
		scalars[i] = models.Sample{
			Timestamp: ls.Timestamp,
			Value:     ls.Value(p),
		}
	}
	return Summarize(name, scalars)
}
