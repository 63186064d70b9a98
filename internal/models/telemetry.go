package models

import (
	"time"
)

// Percentile selects one of the latency percentiles carried by a LatencySample.
type Percentile int8

const (
	P50 Percentile = iota
	P90
	P95
	P99
)

func (p Percentile) String() string {
	switch p {
	case P50:
		return "p50"
	case P90:
		return "p90"
	case P95:
		return "p95"
	case P99:
		return "p99"
	}
	return "unknown"
}

// Sample is a single scalar observation at epoch-second resolution.
type Sample struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// LatencySample carries the latency percentiles observed at one instant,
// all sharing the same timestamp.
type LatencySample struct {
	Timestamp int64   `json:"timestamp"`
	P50       float64 `json:"p50"`
	P90       float64 `json:"p90"`
	P95       float64 `json:"p95"`
	P99       float64 `json:"p99"`
}

// Value returns the selected percentile field.
func (s LatencySample) Value(p Percentile) float64 {
	switch p {
	case P50:
		return s.P50
	case P90:
		return s.P90
	case P95:
		return s.P95
	case P99:
		return s.P99
	}
	return 0
}

// LogEntry is a raw log line as delivered by the log source. The timestamp
// is an ISO-8601 string; the analysis engine normalizes it to epoch seconds
// once, on ingestion.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Severity  string `json:"severity,omitempty"`
}

// StatusGroup is the request-count series for one HTTP status code.
type StatusGroup struct {
	StatusCode int      `json:"statusCode"`
	Samples    []Sample `json:"samples"`
}

// StatusSample is one flattened status-code observation. The bucketized view
// loses per-sample timestamps, so this stream is kept alongside it for
// timeline alignment.
type StatusSample struct {
	Timestamp  int64   `json:"timestamp"`
	StatusCode int     `json:"statusCode"`
	Count      float64 `json:"count"`
}

// MetricSummary is the reduction of a single named time series. It is built
// once per stream and never mutated afterwards. An empty input stream yields
// the zero summary with Count == 0.
type MetricSummary struct {
	Name       string   `json:"name"`
	Avg        float64  `json:"avg"`
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
	Latest     float64  `json:"latest"`
	Count      int      `json:"count"`
	RawSamples []Sample `json:"rawSamples,omitempty"`
}

// LatencySummary holds one MetricSummary per tracked percentile.
type LatencySummary struct {
	P50 MetricSummary `json:"p50"`
	P90 MetricSummary `json:"p90"`
	P95 MetricSummary `json:"p95"`
	P99 MetricSummary `json:"p99"`
}

// StatusBucket groups HTTP status codes sharing a leading digit.
type StatusBucket struct {
	Label      string          `json:"label"`
	TotalCount float64         `json:"totalCount"`
	PerCode    map[int]float64 `json:"perCode"`
}

// TimelineWindow is one half-open interval [Start, End) of the analysis
// period with all signals aggregated over it. Window boundaries are
// real-valued; the period width rarely divides evenly. IsAnomaly is set by
// the anomaly pass after all windows are aggregated, never during.
type TimelineWindow struct {
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	CPU           float64 `json:"cpu"`
	MemoryMB      float64 `json:"memoryMb"`
	P99           float64 `json:"p99"`
	Requests      float64 `json:"requests"`
	Errors5xx     float64 `json:"errors5xx"`
	ErrorLogCount int     `json:"errorLogCount"`
	IsAnomaly     bool    `json:"isAnomaly"`
}

// AnalysisReport is the combined output of one engine run.
type AnalysisReport struct {
	ID            string           `json:"id"`
	PeriodStart   int64            `json:"periodStart"`
	PeriodEnd     int64            `json:"periodEnd"`
	CPU           MetricSummary    `json:"cpu"`
	Memory        MetricSummary    `json:"memory"`
	Latency       LatencySummary   `json:"latency"`
	Buckets       []StatusBucket   `json:"statusBuckets"`
	TotalRequests int              `json:"totalRequests"`
	Timeline      []TimelineWindow `json:"timeline"`
	AnomalyCount  int              `json:"anomalyCount"`
	GeneratedAt   time.Time        `json:"generatedAt"`
}
