package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kloudmate/telemetry-insight/internal/clickhouse"
	"github.com/kloudmate/telemetry-insight/internal/converter"
	"github.com/kloudmate/telemetry-insight/internal/models"
)

// TelemetryProcessor validates incoming rows and forwards them to the
// store. Cumulative counter streams are converted to deltas on the way
// through, so the analysis timeline can sum them per window.
type TelemetryProcessor struct {
	logger *zap.Logger
	writer *clickhouse.Writer
	delta  *converter.DeltaConverter
	config *Config

	mu    sync.RWMutex
	stats ProcessingStats
}

type Config struct {
	ConvertToDelta bool
}

type ProcessingStats struct {
	ProcessedCount  uint64
	DroppedCount    uint64
	ErrorCount      uint64
	LastProcessTime time.Time
}

func NewTelemetryProcessor(cfg *Config, writer *clickhouse.Writer, logger *zap.Logger) *TelemetryProcessor {
	return &TelemetryProcessor{
		logger: logger,
		writer: writer,
		delta:  converter.NewDeltaConverter(),
		config: cfg,
	}
}

func (p *TelemetryProcessor) ProcessSamples(ctx context.Context, samples []models.StoredSample) error {
	accepted := make([]models.StoredSample, 0, len(samples))

	for _, sample := range samples {
		if err := p.validateSample(sample); err != nil {
			p.logger.Warn("dropping telemetry sample",
				zap.String("stream", sample.Stream),
				zap.Error(err))
			p.countDropped()
			continue
		}

		if p.config.ConvertToDelta &&
			sample.Stream == models.StreamStatus &&
			sample.Temporality == models.TemporalityCumulative {
			if sample.SeriesHash == 0 {
				sample.SeriesHash = clickhouse.SeriesHash(sample.Stream, sample.ServiceName, sample.StatusCode)
			}
			sample = p.delta.ToDelta(sample)
		}

		accepted = append(accepted, sample)
	}

	if len(accepted) == 0 {
		return nil
	}

	if err := p.writer.WriteSamples(ctx, accepted); err != nil {
		p.countError()
		return fmt.Errorf("failed to write samples: %w", err)
	}

	p.countProcessed(len(accepted))
	return nil
}

func (p *TelemetryProcessor) ProcessLatency(ctx context.Context, rows []models.StoredLatency) error {
	accepted := make([]models.StoredLatency, 0, len(rows))

	for _, row := range rows {
		if row.Timestamp.IsZero() {
			p.logger.Warn("dropping latency sample with zero timestamp",
				zap.String("service", row.ServiceName))
			p.countDropped()
			continue
		}
		accepted = append(accepted, row)
	}

	if len(accepted) == 0 {
		return nil
	}

	if err := p.writer.WriteLatency(ctx, accepted); err != nil {
		p.countError()
		return fmt.Errorf("failed to write latency rows: %w", err)
	}

	p.countProcessed(len(accepted))
	return nil
}

func (p *TelemetryProcessor) ProcessLogs(ctx context.Context, rows []models.StoredLog) error {
	accepted := make([]models.StoredLog, 0, len(rows))

	for _, row := range rows {
		if row.Timestamp.IsZero() || row.Message == "" {
			p.countDropped()
			continue
		}
		accepted = append(accepted, row)
	}

	if len(accepted) == 0 {
		return nil
	}

	if err := p.writer.WriteLogs(ctx, accepted); err != nil {
		p.countError()
		return fmt.Errorf("failed to write log rows: %w", err)
	}

	p.countProcessed(len(accepted))
	return nil
}

func (p *TelemetryProcessor) validateSample(sample models.StoredSample) error {
	if sample.Stream == "" {
		return fmt.Errorf("stream name is empty")
	}

	if sample.Timestamp.IsZero() {
		return fmt.Errorf("sample timestamp is zero")
	}

	if sample.Timestamp.After(time.Now().Add(24 * time.Hour)) {
		return fmt.Errorf("sample timestamp is too far in the future")
	}

	if sample.Timestamp.Before(time.Now().Add(-30 * 24 * time.Hour)) {
		return fmt.Errorf("sample timestamp is too old")
	}

	if sample.Stream == models.StreamStatus && sample.StatusCode < 100 {
		return fmt.Errorf("status sample missing status code")
	}

	return nil
}

func (p *TelemetryProcessor) countProcessed(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.ProcessedCount += uint64(n)
	p.stats.LastProcessTime = time.Now()
}

func (p *TelemetryProcessor) countDropped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.DroppedCount++
}

func (p *TelemetryProcessor) countError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.ErrorCount++
}

func (p *TelemetryProcessor) GetStats() ProcessingStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

func (p *TelemetryProcessor) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.writer.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	return nil
}
