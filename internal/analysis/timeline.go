package analysis

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

const (
	// targetWindowSeconds aims the partition at ~5-minute granularity.
	targetWindowSeconds = 300
	minWindows          = 10
	maxWindows          = 20

	memoryGBToMB = 1024
)

// TimelineInput carries the raw aligned-by-timestamp streams for one
// analysis period. All collections must be fully materialized before the
// build runs; nothing here is streamed.
type TimelineInput struct {
	PeriodStart int64
	PeriodEnd   int64
	CPU         []models.Sample
	Memory      []models.Sample // values in GB, converted to MB at aggregation
	Latency     []models.LatencySample
	Status      []models.StatusSample
	Logs        []models.LogEntry
}

type logRecord struct {
	timestamp int64
	message   string
	severity  string
}

// BuildTimeline partitions the period into equal-width half-open windows and
// aggregates every signal per window. Window count is clamp(ceil(range/300),
// 10, 20); window boundaries are computed from the window index so repeated
// summation cannot drift.
//
// A zero-length period yields an empty timeline, which is a valid (empty)
// report. A period that ends before it starts is a contract violation and
// returns ErrInvalidInput.
func BuildTimeline(in TimelineInput) ([]models.TimelineWindow, error) {
	rangeSeconds := in.PeriodEnd - in.PeriodStart
	if rangeSeconds < 0 {
		return nil, fmt.Errorf("%w: period ends %ds before it starts", ErrInvalidInput, -rangeSeconds)
	}
	if rangeSeconds == 0 {
		return nil, nil
	}

	count := int(math.Ceil(float64(rangeSeconds) / targetWindowSeconds))
	if count < minWindows {
		count = minWindows
	}
	if count > maxWindows {
		count = maxWindows
	}
	width := float64(rangeSeconds) / float64(count)

	logs, err := normalizeLogs(in.Logs)
	if err != nil {
		return nil, err
	}
	errorLogs := filterErrorLogs(logs)

	periodStart := float64(in.PeriodStart)
	periodEnd := float64(in.PeriodEnd)

	windows := make([]models.TimelineWindow, count)
	for i := range windows {
		winStart := periodStart + float64(i)*width
		winEnd := periodStart + float64(i+1)*width
		if i == count-1 {
			winEnd = periodEnd
		}
		windows[i] = aggregateWindow(winStart, winEnd, in, errorLogs)
	}

	return windows, nil
}

// aggregateWindow computes every signal for one [start, end) interval. Each
// window is independent of the others; no window reads another window's data.
func aggregateWindow(start, end float64, in TimelineInput, errorLogs []logRecord) models.TimelineWindow {
	w := models.TimelineWindow{Start: start, End: end}

	cpuSum := 0.0
	cpuCount := 0
	for _, s := range in.CPU {
		if inWindow(s.Timestamp, start, end) {
			cpuSum += s.Value
			cpuCount++
		}
	}
	if cpuCount > 0 {
		w.CPU = cpuSum / float64(cpuCount)
	}

	// Peak, not average: memory pressure spikes matter more than a smoothed
	// mean for this timeline.
	memMax := 0.0
	for _, s := range in.Memory {
		if inWindow(s.Timestamp, start, end) && s.Value > memMax {
			memMax = s.Value
		}
	}
	w.MemoryMB = memMax * memoryGBToMB

	for _, ls := range in.Latency {
		if inWindow(ls.Timestamp, start, end) && ls.P99 > w.P99 {
			w.P99 = ls.P99
		}
	}

	for _, s := range in.Status {
		if !inWindow(s.Timestamp, start, end) {
			continue
		}
		w.Requests += s.Count
		if s.StatusCode >= 500 && s.StatusCode < 600 {
			w.Errors5xx += s.Count
		}
	}

	for _, lr := range errorLogs {
		if inWindow(lr.timestamp, start, end) {
			w.ErrorLogCount++
		}
	}

	return w
}

// inWindow implements half-open membership: start <= t < end. Adjacent
// windows share the exact same computed boundary, so a boundary sample lands
// in exactly one window.
func inWindow(timestamp int64, start, end float64) bool {
	t := float64(timestamp)
	return t >= start && t < end
}

// normalizeLogs converts ISO-8601 log timestamps to epoch seconds once, at
// the engine boundary. An unparsable timestamp is a contract violation.
func normalizeLogs(entries []models.LogEntry) ([]logRecord, error) {
	records := make([]logRecord, 0, len(entries))
	for _, e := range entries {
		t, err := time.Parse(time.RFC3339, e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: log timestamp %q: %v", ErrInvalidInput, e.Timestamp, err)
		}
		records = append(records, logRecord{
			timestamp: t.Unix(),
			message:   e.Message,
			severity:  e.Severity,
		})
	}
	return records, nil
}

// filterErrorLogs keeps entries flagged by severity or by message text. The
// checks are OR'd: any match counts the entry as an error log.
func filterErrorLogs(records []logRecord) []logRecord {
	var out []logRecord
	for _, lr := range records {
		if isErrorLog(lr) {
			out = append(out, lr)
		}
	}
	return out
}

func isErrorLog(lr logRecord) bool {
	if strings.EqualFold(lr.severity, "error") {
		return true
	}
	msg := strings.ToLower(lr.message)
	return strings.Contains(msg, "error") ||
		strings.Contains(msg, "exception") ||
		strings.Contains(msg, "fatal")
}
