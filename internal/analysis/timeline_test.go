package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

func TestBuildTimelineWindowCount(t *testing.T) {
	tests := []struct {
		name         string
		rangeSeconds int64
		want         int
	}{
		{"short range clamps up", 600, 10},
		{"one hour", 3600, 12},
		{"non-divisible range rounds up", 3601, 13},
		{"exactly at max", 6000, 20},
		{"long range clamps down", 86400, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, err := BuildTimeline(TimelineInput{
				PeriodStart: 1_700_000_000,
				PeriodEnd:   1_700_000_000 + tt.rangeSeconds,
			})
			require.NoError(t, err)
			assert.Len(t, windows, tt.want)
		})
	}
}

func TestBuildTimelineBoundaries(t *testing.T) {
	const start, end = int64(1_700_000_000), int64(1_700_000_000 + 3601)

	windows, err := BuildTimeline(TimelineInput{PeriodStart: start, PeriodEnd: end})
	require.NoError(t, err)
	require.Len(t, windows, 13)

	assert.Equal(t, float64(start), windows[0].Start)
	assert.Equal(t, float64(end), windows[len(windows)-1].End)

	for i := 1; i < len(windows); i++ {
		assert.Equal(t, windows[i-1].End, windows[i].Start,
			"window %d must start exactly where window %d ends", i, i-1)
	}

	width := float64(end-start) / 13
	for i, w := range windows[:len(windows)-1] {
		assert.InDelta(t, width, w.End-w.Start, 1e-9, "window %d width", i)
	}
}

// A sample sitting exactly on a shared boundary belongs to the later window
// and only the later window.
func TestBuildTimelineBoundarySampleOwnership(t *testing.T) {
	const start = int64(1_700_000_000)
	const end = start + 3600 // 12 windows of exactly 300s

	var samples []models.Sample
	for ts := start; ts < end; ts += 300 {
		samples = append(samples, models.Sample{Timestamp: ts, Value: 1.0})
	}

	windows, err := BuildTimeline(TimelineInput{
		PeriodStart: start,
		PeriodEnd:   end,
		CPU:         samples,
	})
	require.NoError(t, err)
	require.Len(t, windows, 12)

	for i, w := range windows {
		assert.Equal(t, 1.0, w.CPU, "window %d should own exactly its start-boundary sample", i)
	}
}

func TestBuildTimelineAggregation(t *testing.T) {
	const start = int64(0)
	const end = int64(3600) // 12 windows, 300s wide

	in := TimelineInput{
		PeriodStart: start,
		PeriodEnd:   end,
		CPU: []models.Sample{
			{Timestamp: 10, Value: 0.4},
			{Timestamp: 20, Value: 0.6},
			{Timestamp: 310, Value: 0.9},
		},
		Memory: []models.Sample{
			{Timestamp: 10, Value: 2.0},
			{Timestamp: 20, Value: 2.5},
		},
		Latency: []models.LatencySample{
			{Timestamp: 10, P99: 120},
			{Timestamp: 20, P99: 340},
		},
		Status: []models.StatusSample{
			{Timestamp: 10, StatusCode: 200, Count: 80},
			{Timestamp: 20, StatusCode: 500, Count: 20},
			{Timestamp: 310, StatusCode: 503, Count: 5},
		},
		Logs: []models.LogEntry{
			{Timestamp: epochISO(15), Message: "connection reset", Severity: "error"},
			{Timestamp: epochISO(25), Message: "request served", Severity: "info"},
			{Timestamp: epochISO(320), Message: "unhandled exception in worker", Severity: "warn"},
		},
	}

	windows, err := BuildTimeline(in)
	require.NoError(t, err)
	require.Len(t, windows, 12)

	first := windows[0]
	assert.InDelta(t, 0.5, first.CPU, 1e-9)
	assert.InDelta(t, 2.5*1024, first.MemoryMB, 1e-9)
	assert.Equal(t, 340.0, first.P99)
	assert.Equal(t, 100.0, first.Requests)
	assert.Equal(t, 20.0, first.Errors5xx)
	assert.Equal(t, 1, first.ErrorLogCount)

	second := windows[1]
	assert.InDelta(t, 0.9, second.CPU, 1e-9)
	assert.Zero(t, second.MemoryMB)
	assert.Equal(t, 5.0, second.Requests)
	assert.Equal(t, 5.0, second.Errors5xx)
	assert.Equal(t, 1, second.ErrorLogCount)

	for i, w := range windows[2:] {
		assert.Zero(t, w.CPU, "window %d", i+2)
		assert.Zero(t, w.Requests, "window %d", i+2)
		assert.Zero(t, w.ErrorLogCount, "window %d", i+2)
	}
}

func TestBuildTimelineEmptyPeriod(t *testing.T) {
	windows, err := BuildTimeline(TimelineInput{
		PeriodStart: 1_700_000_000,
		PeriodEnd:   1_700_000_000,
	})
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestBuildTimelineInvertedPeriod(t *testing.T) {
	_, err := BuildTimeline(TimelineInput{
		PeriodStart: 1_700_000_100,
		PeriodEnd:   1_700_000_000,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildTimelineBadLogTimestamp(t *testing.T) {
	_, err := BuildTimeline(TimelineInput{
		PeriodStart: 0,
		PeriodEnd:   3600,
		Logs: []models.LogEntry{
			{Timestamp: "yesterday-ish", Message: "boom", Severity: "error"},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIsErrorLog(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		severity string
		want     bool
	}{
		{"error severity", "all fine", "error", true},
		{"error severity uppercase", "all fine", "ERROR", true},
		{"error keyword", "Error writing batch", "info", true},
		{"exception keyword", "NullPointerException thrown", "warn", true},
		{"fatal keyword", "fatal: lost quorum", "info", true},
		{"clean info line", "request served in 12ms", "info", false},
		{"warn without keywords", "retrying upstream", "warn", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isErrorLog(logRecord{message: tt.message, severity: tt.severity})
			assert.Equal(t, tt.want, got)
		})
	}
}

// epochISO formats an epoch-second offset as the RFC3339 string log entries
// carry on the wire.
func epochISO(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
