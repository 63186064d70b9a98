package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		samples []models.Sample
		want    models.MetricSummary
	}{
		{
			name: "constant series",
			samples: []models.Sample{
				{Timestamp: 100, Value: 2.5},
				{Timestamp: 160, Value: 2.5},
				{Timestamp: 220, Value: 2.5},
			},
			want: models.MetricSummary{Name: "cpu", Avg: 2.5, Min: 2.5, Max: 2.5, Latest: 2.5, Count: 3},
		},
		{
			name: "mixed values",
			samples: []models.Sample{
				{Timestamp: 100, Value: 1.0},
				{Timestamp: 160, Value: 5.0},
				{Timestamp: 220, Value: 3.0},
			},
			want: models.MetricSummary{Name: "cpu", Avg: 3.0, Min: 1.0, Max: 5.0, Latest: 3.0, Count: 3},
		},
		{
			name: "negative values",
			samples: []models.Sample{
				{Timestamp: 100, Value: -2.0},
				{Timestamp: 160, Value: 4.0},
			},
			want: models.MetricSummary{Name: "cpu", Avg: 1.0, Min: -2.0, Max: 4.0, Latest: 4.0, Count: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize("cpu", tt.samples)

			assert.Equal(t, tt.want.Name, got.Name)
			assert.InDelta(t, tt.want.Avg, got.Avg, 1e-9)
			assert.Equal(t, tt.want.Min, got.Min)
			assert.Equal(t, tt.want.Max, got.Max)
			assert.Equal(t, tt.want.Latest, got.Latest)
			assert.Equal(t, tt.want.Count, got.Count)
			assert.Equal(t, tt.samples, got.RawSamples)
		})
	}
}

func TestSummarizeBounds(t *testing.T) {
	samples := []models.Sample{
		{Timestamp: 1, Value: 0.4},
		{Timestamp: 2, Value: 9.7},
		{Timestamp: 3, Value: 3.2},
		{Timestamp: 4, Value: 7.1},
		{Timestamp: 5, Value: 0.9},
	}

	got := Summarize("series", samples)

	assert.LessOrEqual(t, got.Min, got.Avg)
	assert.LessOrEqual(t, got.Avg, got.Max)
	assert.LessOrEqual(t, got.Min, got.Latest)
	assert.LessOrEqual(t, got.Latest, got.Max)
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize("empty", nil)

	assert.Equal(t, "empty", got.Name)
	assert.Zero(t, got.Avg)
	assert.Zero(t, got.Min)
	assert.Zero(t, got.Max)
	assert.Zero(t, got.Latest)
	assert.Zero(t, got.Count)
}

// Latest follows arrival order, not timestamp order. Upstream readers
// deliver chronological streams; the summarizer does not re-sort.
func TestSummarizeLatestIsArrivalOrder(t *testing.T) {
	samples := []models.Sample{
		{Timestamp: 300, Value: 9.0},
		{Timestamp: 100, Value: 1.0},
	}

	got := Summarize("series", samples)
	assert.Equal(t, 1.0, got.Latest)
}

func TestSummarizePercentile(t *testing.T) {
	samples := []models.LatencySample{
		{Timestamp: 100, P50: 10, P90: 20, P95: 30, P99: 40},
		{Timestamp: 160, P50: 12, P90: 24, P95: 36, P99: 48},
		{Timestamp: 220, P50: 8, P90: 16, P95: 24, P99: 32},
	}

	tests := []struct {
		percentile models.Percentile
		wantAvg    float64
		wantMin    float64
		wantMax    float64
		wantLatest float64
	}{
		{models.P50, 10, 8, 12, 8},
		{models.P90, 20, 16, 24, 16},
		{models.P95, 30, 24, 36, 24},
		{models.P99, 40, 32, 48, 32},
	}

	for _, tt := range tests {
		t.Run(tt.percentile.String(), func(t *testing.T) {
			got := SummarizePercentile("latency_"+tt.percentile.String(), samples, tt.percentile)

			require.Equal(t, 3, got.Count)
			assert.InDelta(t, tt.wantAvg, got.Avg, 1e-9)
			assert.Equal(t, tt.wantMin, got.Min)
			assert.Equal(t, tt.wantMax, got.Max)
			assert.Equal(t, tt.wantLatest, got.Latest)
		})
	}
}

func TestSummarizePercentileEmpty(t *testing.T) {
	got := SummarizePercentile("latency_p99", nil, models.P99)

	assert.Zero(t, got.Count)
	assert.Zero(t, got.Avg)
}
