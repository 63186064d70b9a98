package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

// PeriodData is one analysis period's worth of fully-materialized streams,
// shaped the way the analysis engine consumes them. Log timestamps come back
// as ISO-8601 strings; the engine normalizes them at its own boundary.
type PeriodData struct {
	CPU     []models.Sample
	Memory  []models.Sample
	Latency []models.LatencySample
	Status  []models.StatusGroup
	Logs    []models.LogEntry
}

// Reader fetches stored telemetry and persisted reports.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewReader(cfg *Config, logger *zap.Logger) (*Reader, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Reader{conn: conn, logger: logger}, nil
}

// FetchPeriod loads every stream for [start, end). Empty streams come back
// as empty slices, never as an error: a quiet period is a valid period.
func (r *Reader) FetchPeriod(ctx context.Context, start, end time.Time) (*PeriodData, error) {
	data := &PeriodData{}

	var err error
	if data.CPU, err = r.fetchScalarStream(ctx, models.StreamCPU, start, end); err != nil {
		return nil, err
	}
	if data.Memory, err = r.fetchScalarStream(ctx, models.StreamMemory, start, end); err != nil {
		return nil, err
	}
	if data.Latency, err = r.fetchLatency(ctx, start, end); err != nil {
		return nil, err
	}
	if data.Status, err = r.fetchStatusGroups(ctx, start, end); err != nil {
		return nil, err
	}
	if data.Logs, err = r.fetchLogs(ctx, start, end); err != nil {
		return nil, err
	}

	return data, nil
}

func (r *Reader) fetchScalarStream(ctx context.Context, stream string, start, end time.Time) ([]models.Sample, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT timestamp, value
		FROM telemetry_samples
		WHERE stream = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`,
		stream, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s stream: %w", stream, err)
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		var (
			ts    time.Time
			value float64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s sample: %w", stream, err)
		}
		samples = append(samples, models.Sample{Timestamp: ts.Unix(), Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s stream rows error: %w", stream, err)
	}

	return samples, nil
}

func (r *Reader) fetchLatency(ctx context.Context, start, end time.Time) ([]models.LatencySample, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT timestamp, p50, p90, p95, p99
		FROM latency_samples
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query latency stream: %w", err)
	}
	defer rows.Close()

	var samples []models.LatencySample
	for rows.Next() {
		var (
			ts                 time.Time
			p50, p90, p95, p99 float64
		)
		if err := rows.Scan(&ts, &p50, &p90, &p95, &p99); err != nil {
			return nil, fmt.Errorf("failed to scan latency sample: %w", err)
		}
		samples = append(samples, models.LatencySample{
			Timestamp: ts.Unix(),
			P50:       p50,
			P90:       p90,
			P95:       p95,
			P99:       p99,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latency rows error: %w", err)
	}

	return samples, nil
}

func (r *Reader) fetchStatusGroups(ctx context.Context, start, end time.Time) ([]models.StatusGroup, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT status_code, timestamp, value
		FROM telemetry_samples
		WHERE stream = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY status_code, timestamp`,
		models.StreamStatus, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query status stream: %w", err)
	}
	defer rows.Close()

	var groups []models.StatusGroup
	for rows.Next() {
		var (
			code  uint16
			ts    time.Time
			value float64
		)
		if err := rows.Scan(&code, &ts, &value); err != nil {
			return nil, fmt.Errorf("failed to scan status sample: %w", err)
		}

		sample := models.Sample{Timestamp: ts.Unix(), Value: value}
		if n := len(groups); n > 0 && groups[n-1].StatusCode == int(code) {
			groups[n-1].Samples = append(groups[n-1].Samples, sample)
		} else {
			groups = append(groups, models.StatusGroup{
				StatusCode: int(code),
				Samples:    []models.Sample{sample},
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("status rows error: %w", err)
	}

	return groups, nil
}

func (r *Reader) fetchLogs(ctx context.Context, start, end time.Time) ([]models.LogEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT timestamp, severity, message
		FROM log_entries
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var (
			ts                time.Time
			severity, message string
		)
		if err := rows.Scan(&ts, &severity, &message); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, models.LogEntry{
			Timestamp: ts.UTC().Format(time.RFC3339),
			Severity:  severity,
			Message:   message,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("log rows error: %w", err)
	}

	return entries, nil
}

// WriteReport persists one analysis report. The full report travels as a
// JSON payload; the scalar columns exist for querying without unmarshalling.
func (r *Reader) WriteReport(ctx context.Context, report *models.AnalysisReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	batch, err := r.conn.PrepareBatch(ctx, `INSERT INTO analysis_reports (
		id,
		period_start,
		period_end,
		generated_at,
		window_count,
		anomaly_count,
		total_requests,
		payload
	)`)
	if err != nil {
		return fmt.Errorf("failed to prepare report batch: %w", err)
	}

	if err := batch.Append(
		report.ID,
		report.PeriodStart,
		report.PeriodEnd,
		report.GeneratedAt,
		uint16(len(report.Timeline)),
		uint16(report.AnomalyCount),
		int64(report.TotalRequests),
		string(payload),
	); err != nil {
		return fmt.Errorf("failed to append report: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send report batch: %w", err)
	}

	r.logger.Info("persisted analysis report",
		zap.String("report_id", report.ID),
		zap.Int("windows", len(report.Timeline)))

	return nil
}

// FetchReport loads one persisted report by ID. A missing report returns
// (nil, nil).
func (r *Reader) FetchReport(ctx context.Context, id string) (*models.AnalysisReport, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT payload
		FROM analysis_reports
		WHERE id = ?
		LIMIT 1`,
		id)
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("report rows error: %w", err)
		}
		return nil, nil
	}

	var payload string
	if err := rows.Scan(&payload); err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	var report models.AnalysisReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

func (r *Reader) Close() error {
	return r.conn.Close()
}
