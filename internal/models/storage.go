package models

import (
	"time"
)

// Stream names as stored in ClickHouse.
const (
	StreamCPU    = "cpu"
	StreamMemory = "memory"
	StreamStatus = "http_status"
)

// StoredSample is one scalar telemetry row as written to telemetry_samples.
// StatusCode is zero for non-HTTP streams.
type StoredSample struct {
	Stream      string
	ServiceName string
	SeriesHash  uint64
	Timestamp   time.Time
	Value       float64
	StatusCode  uint16
	Temporality Temporality
}

// Temporality describes how a counter stream reports its values.
type Temporality int8

const (
	TemporalityUnspecified Temporality = iota
	TemporalityCumulative
	TemporalityDelta
)

// StoredLatency is one latency percentile row as written to latency_samples.
type StoredLatency struct {
	ServiceName string
	SeriesHash  uint64
	Timestamp   time.Time
	P50         float64
	P90         float64
	P95         float64
	P99         float64
}

// StoredLog is one log row as written to log_entries.
type StoredLog struct {
	ServiceName string
	Timestamp   time.Time
	Severity    string
	Message     string
}
