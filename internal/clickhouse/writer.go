package clickhouse

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/kloudmate/telemetry-insight/internal/models"
)

type Config struct {
	Addresses     []string
	Database      string
	Username      string
	Password      string
	BatchSize     int
	FlushInterval time.Duration
	MaxIdleConns  int
	MaxOpenConns  int
}

// Writer batches telemetry rows into their ClickHouse tables. Rows
// accumulate per table and flush when any buffer reaches the batch size or
// the flush interval elapses.
type Writer struct {
	conn          driver.Conn
	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration

	mu        sync.Mutex
	samples   []models.StoredSample
	latency   []models.StoredLatency
	logs      []models.StoredLog
	lastFlush time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// Connect opens a native ClickHouse connection with the pipeline defaults.
func Connect(cfg *Config) (driver.Conn, error) {
	options := &clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     time.Second * 10,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Hour,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func NewWriter(cfg *Config, logger *zap.Logger) (*Writer, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		conn:          conn,
		logger:        logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		samples:       make([]models.StoredSample, 0, cfg.BatchSize),
		lastFlush:     time.Now(),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	go w.periodicFlush()

	return w, nil
}

// SeriesHash identifies one stored series: stream + service + status code.
func SeriesHash(stream, serviceName string, statusCode uint16) uint64 {
	h := xxhash.New()
	h.WriteString(stream)
	h.WriteString(serviceName)
	if statusCode != 0 {
		h.WriteString(strconv.Itoa(int(statusCode)))
	}
	return h.Sum64()
}

func (w *Writer) WriteSamples(ctx context.Context, samples []models.StoredSample) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range samples {
		if samples[i].SeriesHash == 0 {
			samples[i].SeriesHash = SeriesHash(samples[i].Stream, samples[i].ServiceName, samples[i].StatusCode)
		}
	}
	w.samples = append(w.samples, samples...)

	if w.pendingLocked() >= w.batchSize {
		return w.flushLocked(ctx)
	}
	return nil
}

func (w *Writer) WriteLatency(ctx context.Context, rows []models.StoredLatency) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range rows {
		if rows[i].SeriesHash == 0 {
			rows[i].SeriesHash = SeriesHash("latency", rows[i].ServiceName, 0)
		}
	}
	w.latency = append(w.latency, rows...)

	if w.pendingLocked() >= w.batchSize {
		return w.flushLocked(ctx)
	}
	return nil
}

func (w *Writer) WriteLogs(ctx context.Context, rows []models.StoredLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logs = append(w.logs, rows...)

	if w.pendingLocked() >= w.batchSize {
		return w.flushLocked(ctx)
	}
	return nil
}

func (w *Writer) pendingLocked() int {
	return len(w.samples) + len(w.latency) + len(w.logs)
}

func (w *Writer) periodicFlush() {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			if time.Since(w.lastFlush) >= w.flushInterval && w.pendingLocked() > 0 {
				if err := w.flushLocked(context.Background()); err != nil {
					w.logger.Error("periodic flush failed", zap.Error(err))
				}
			}
			w.mu.Unlock()

		case <-w.stopCh:
			w.mu.Lock()
			if w.pendingLocked() > 0 {
				if err := w.flushLocked(context.Background()); err != nil {
					w.logger.Error("final flush failed", zap.Error(err))
				}
			}
			w.mu.Unlock()
			return
		}
	}
}

func (w *Writer) flushLocked(ctx context.Context) error {
	if err := w.flushSamplesLocked(ctx); err != nil {
		return err
	}
	if err := w.flushLatencyLocked(ctx); err != nil {
		return err
	}
	if err := w.flushLogsLocked(ctx); err != nil {
		return err
	}
	w.lastFlush = time.Now()
	return nil
}

func (w *Writer) flushSamplesLocked(ctx context.Context) error {
	if len(w.samples) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO telemetry_samples (
		stream,
		serviceName,
		series_hash,
		timestamp,
		value,
		status_code
	)`)
	if err != nil {
		return fmt.Errorf("failed to prepare samples batch: %w", err)
	}

	for _, s := range w.samples {
		if err := batch.Append(
			s.Stream,
			s.ServiceName,
			s.SeriesHash,
			s.Timestamp,
			s.Value,
			s.StatusCode,
		); err != nil {
			return fmt.Errorf("failed to append sample to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send samples batch: %w", err)
	}

	w.logger.Info("flushed telemetry samples", zap.Int("batch_size", len(w.samples)))
	w.samples = w.samples[:0]
	return nil
}

func (w *Writer) flushLatencyLocked(ctx context.Context) error {
	if len(w.latency) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO latency_samples (
		serviceName,
		series_hash,
		timestamp,
		p50,
		p90,
		p95,
		p99
	)`)
	if err != nil {
		return fmt.Errorf("failed to prepare latency batch: %w", err)
	}

	for _, s := range w.latency {
		if err := batch.Append(
			s.ServiceName,
			s.SeriesHash,
			s.Timestamp,
			s.P50,
			s.P90,
			s.P95,
			s.P99,
		); err != nil {
			return fmt.Errorf("failed to append latency row to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send latency batch: %w", err)
	}

	w.logger.Info("flushed latency samples", zap.Int("batch_size", len(w.latency)))
	w.latency = w.latency[:0]
	return nil
}

func (w *Writer) flushLogsLocked(ctx context.Context) error {
	if len(w.logs) == 0 {
		return nil
	}

	batch, err := w.conn.PrepareBatch(ctx, `INSERT INTO log_entries (
		serviceName,
		timestamp,
		severity,
		message
	)`)
	if err != nil {
		return fmt.Errorf("failed to prepare logs batch: %w", err)
	}

	for _, l := range w.logs {
		if err := batch.Append(
			l.ServiceName,
			l.Timestamp,
			l.Severity,
			l.Message,
		); err != nil {
			return fmt.Errorf("failed to append log row to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send logs batch: %w", err)
	}

	w.logger.Info("flushed log entries", zap.Int("batch_size", len(w.logs)))
	w.logs = w.logs[:0]
	return nil
}

func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *Writer) Close() error {
	close(w.stopCh)
	<-w.doneCh
	return w.conn.Close()
}
