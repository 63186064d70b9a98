package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

// ErrInvalidInput marks programming-contract violations: unparsable
// timestamps and periods that end before they start. Missing or empty data
// is never an error; it degrades to zero-valued summaries and windows.
var ErrInvalidInput = errors.New("invalid analysis input")

// Input is one fully-materialized set of telemetry streams plus the analysis
// period as ISO-8601 timestamps. The engine performs no fetching; by the
// time Analyze runs, every collection must be complete.
type Input struct {
	PeriodStart string
	PeriodEnd   string
	CPU         []models.Sample
	Memory      []models.Sample
	Latency     []models.LatencySample
	Status      []models.StatusGroup
	Logs        []models.LogEntry
}

// Engine runs the full correlation pass: per-stream summaries, status
// bucketing, timeline windowing, and anomaly detection.
type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Analyze transforms raw samples into a report. The per-stream summarizers
// are independent and run concurrently; the timeline build needs the
// flattened status stream, and the anomaly pass runs only after every window
// is fully aggregated.
func (e *Engine) Analyze(ctx context.Context, in Input) (*models.AnalysisReport, error) {
	start, err := parseTimestamp(in.PeriodStart)
	if err != nil {
		return nil, err
	}
	end, err := parseTimestamp(in.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if end < start {
		return nil, fmt.Errorf("%w: period end %s precedes start %s", ErrInvalidInput, in.PeriodEnd, in.PeriodStart)
	}

	report := &models.AnalysisReport{
		ID:          uuid.NewString(),
		PeriodStart: start,
		PeriodEnd:   end,
		GeneratedAt: time.Now().UTC(),
	}

	var statusSamples []models.StatusSample

	// Each goroutine writes a distinct report field; the Wait is the only
	// synchronization the summarizers need.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.CPU = Summarize("cpu", in.CPU)
		return nil
	})
	g.Go(func() error {
		report.Memory = Summarize("memory", in.Memory)
		return nil
	})
	g.Go(func() error {
		report.Latency.P50 = SummarizePercentile("latency_p50", in.Latency, models.P50)
		return nil
	})
	g.Go(func() error {
		report.Latency.P90 = SummarizePercentile("latency_p90", in.Latency, models.P90)
		return nil
	})
	g.Go(func() error {
		report.Latency.P95 = SummarizePercentile("latency_p95", in.Latency, models.P95)
		return nil
	})
	g.Go(func() error {
		report.Latency.P99 = SummarizePercentile("latency_p99", in.Latency, models.P99)
		return nil
	})
	g.Go(func() error {
		report.Buckets, statusSamples, report.TotalRequests = BucketizeStatus(in.Status)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	windows, err := BuildTimeline(TimelineInput{
		PeriodStart: start,
		PeriodEnd:   end,
		CPU:         in.CPU,
		Memory:      in.Memory,
		Latency:     in.Latency,
		Status:      statusSamples,
		Logs:        in.Logs,
	})
	if err != nil {
		return nil, err
	}

	report.Timeline = DetectAnomalies(windows)
	for _, w := range report.Timeline {
		if w.IsAnomaly {
			report.AnomalyCount++
		}
	}

	e.logger.Info("analysis complete",
		zap.String("report_id", report.ID),
		zap.Int("windows", len(report.Timeline)),
		zap.Int("anomalies", report.AnomalyCount),
		zap.Int("total_requests", report.TotalRequests))

	return report, nil
}

func parseTimestamp(value string) (int64, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q: %v", ErrInvalidInput, value, err)
	}
	return t.Unix(), nil
}
