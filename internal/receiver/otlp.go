package receiver

import (
	"context"
	"fmt"
	"math"
	"net"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/plog/plogotlp"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/pmetric/pmetricotlp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kloudmate/telemetry-insight/internal/models"
	"github.com/kloudmate/telemetry-insight/internal/processor"
	"github.com/kloudmate/telemetry-insight/pkg/histogram"
)

// Config maps exported OTLP metric names onto the telemetry streams the
// analysis engine understands.
type Config struct {
	Address         string
	CPUMetric       string
	MemoryMetric    string
	LatencyMetric   string
	RequestsMetric  string
	StatusAttribute string
}

// OTLPReceiver terminates OTLP/gRPC for both metrics and logs and feeds the
// processor. Metrics outside the configured mapping are ignored.
type OTLPReceiver struct {
	logger    *zap.Logger
	processor *processor.TelemetryProcessor
	config    *Config
	server    *grpc.Server
}

type metricsService struct {
	pmetricotlp.UnimplementedGRPCServer
	r *OTLPReceiver
}

type logsService struct {
	plogotlp.UnimplementedGRPCServer
	r *OTLPReceiver
}

func NewOTLPReceiver(cfg *Config, proc *processor.TelemetryProcessor, logger *zap.Logger) *OTLPReceiver {
	return &OTLPReceiver{
		logger:    logger,
		processor: proc,
		config:    cfg,
	}
}

func (r *OTLPReceiver) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", r.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	r.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(100*1024*1024),
		grpc.MaxSendMsgSize(100*1024*1024),
	)

	pmetricotlp.RegisterGRPCServer(r.server, &metricsService{r: r})
	plogotlp.RegisterGRPCServer(r.server, &logsService{r: r})

	r.logger.Info("Starting OTLP receiver", zap.String("address", r.config.Address))

	go func() {
		<-ctx.Done()
		r.logger.Info("Shutting down OTLP receiver")
		r.server.GracefulStop()
	}()

	if err := r.server.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

func (s *metricsService) Export(ctx context.Context, req pmetricotlp.ExportRequest) (pmetricotlp.ExportResponse, error) {
	md := req.Metrics()
	if md.DataPointCount() == 0 {
		return pmetricotlp.NewExportResponse(), nil
	}

	samples, latency := s.r.convertMetrics(md)

	if len(samples) > 0 {
		if err := s.r.processor.ProcessSamples(ctx, samples); err != nil {
			s.r.logger.Error("Failed to process samples", zap.Error(err))
			return pmetricotlp.NewExportResponse(), status.Error(codes.Internal, err.Error())
		}
	}
	if len(latency) > 0 {
		if err := s.r.processor.ProcessLatency(ctx, latency); err != nil {
			s.r.logger.Error("Failed to process latency", zap.Error(err))
			return pmetricotlp.NewExportResponse(), status.Error(codes.Internal, err.Error())
		}
	}

	return pmetricotlp.NewExportResponse(), nil
}

func (s *logsService) Export(ctx context.Context, req plogotlp.ExportRequest) (plogotlp.ExportResponse, error) {
	ld := req.Logs()
	if ld.LogRecordCount() == 0 {
		return plogotlp.NewExportResponse(), nil
	}

	rows := s.r.convertLogs(ld)
	if len(rows) > 0 {
		if err := s.r.processor.ProcessLogs(ctx, rows); err != nil {
			s.r.logger.Error("Failed to process logs", zap.Error(err))
			return plogotlp.NewExportResponse(), status.Error(codes.Internal, err.Error())
		}
	}

	return plogotlp.NewExportResponse(), nil
}

func (r *OTLPReceiver) convertMetrics(md pmetric.Metrics) ([]models.StoredSample, []models.StoredLatency) {
	var samples []models.StoredSample
	var latency []models.StoredLatency

	resourceMetrics := md.ResourceMetrics()
	for i := 0; i < resourceMetrics.Len(); i++ {
		rm := resourceMetrics.At(i)

		serviceName := ""
		if attr, ok := rm.Resource().Attributes().Get("service.name"); ok {
			serviceName = attr.AsString()
		}

		scopeMetrics := rm.ScopeMetrics()
		for j := 0; j < scopeMetrics.Len(); j++ {
			metrics := scopeMetrics.At(j).Metrics()
			for k := 0; k < metrics.Len(); k++ {
				metric := metrics.At(k)

				switch metric.Name() {
				case r.config.CPUMetric:
					samples = append(samples, r.convertGauge(metric, models.StreamCPU, serviceName)...)
				case r.config.MemoryMetric:
					samples = append(samples, r.convertGauge(metric, models.StreamMemory, serviceName)...)
				case r.config.RequestsMetric:
					samples = append(samples, r.convertStatusCounts(metric, serviceName)...)
				case r.config.LatencyMetric:
					latency = append(latency, r.convertLatency(metric, serviceName)...)
				}
			}
		}
	}

	return samples, latency
}

func (r *OTLPReceiver) convertGauge(metric pmetric.Metric, stream, serviceName string) []models.StoredSample {
	var dataPoints pmetric.NumberDataPointSlice
	switch metric.Type() {
	case pmetric.MetricTypeGauge:
		dataPoints = metric.Gauge().DataPoints()
	case pmetric.MetricTypeSum:
		dataPoints = metric.Sum().DataPoints()
	default:
		r.logger.Warn("unsupported metric type for scalar stream",
			zap.String("metric", metric.Name()),
			zap.String("type", metric.Type().String()))
		return nil
	}

	samples := make([]models.StoredSample, 0, dataPoints.Len())
	for i := 0; i < dataPoints.Len(); i++ {
		dp := dataPoints.At(i)
		samples = append(samples, models.StoredSample{
			Stream:      stream,
			ServiceName: serviceName,
			Timestamp:   dp.Timestamp().AsTime(),
			Value:       numberValue(dp),
		})
	}
	return samples
}

func (r *OTLPReceiver) convertStatusCounts(metric pmetric.Metric, serviceName string) []models.StoredSample {
	if metric.Type() != pmetric.MetricTypeSum {
		r.logger.Warn("request metric is not a sum",
			zap.String("metric", metric.Name()),
			zap.String("type", metric.Type().String()))
		return nil
	}

	sum := metric.Sum()
	temporality := models.TemporalityDelta
	if sum.AggregationTemporality() == pmetric.AggregationTemporalityCumulative {
		temporality = models.TemporalityCumulative
	}

	dataPoints := sum.DataPoints()
	samples := make([]models.StoredSample, 0, dataPoints.Len())
	for i := 0; i < dataPoints.Len(); i++ {
		dp := dataPoints.At(i)

		code, ok := statusCode(dp.Attributes(), r.config.StatusAttribute)
		if !ok {
			continue
		}

		samples = append(samples, models.StoredSample{
			Stream:      models.StreamStatus,
			ServiceName: serviceName,
			Timestamp:   dp.Timestamp().AsTime(),
			Value:       numberValue(dp),
			StatusCode:  code,
			Temporality: temporality,
		})
	}
	return samples
}

func (r *OTLPReceiver) convertLatency(metric pmetric.Metric, serviceName string) []models.StoredLatency {
	switch metric.Type() {
	case pmetric.MetricTypeSummary:
		return r.latencyFromSummary(metric.Summary(), serviceName)
	case pmetric.MetricTypeHistogram:
		return r.latencyFromHistogram(metric.Histogram(), metric.Name(), serviceName)
	default:
		r.logger.Warn("unsupported latency metric type",
			zap.String("metric", metric.Name()),
			zap.String("type", metric.Type().String()))
		return nil
	}
}

func (r *OTLPReceiver) latencyFromSummary(summary pmetric.Summary, serviceName string) []models.StoredLatency {
	dataPoints := summary.DataPoints()
	rows := make([]models.StoredLatency, 0, dataPoints.Len())

	for i := 0; i < dataPoints.Len(); i++ {
		dp := dataPoints.At(i)
		row := models.StoredLatency{
			ServiceName: serviceName,
			Timestamp:   dp.Timestamp().AsTime(),
		}

		quantiles := dp.QuantileValues()
		for j := 0; j < quantiles.Len(); j++ {
			q := quantiles.At(j)
			switch {
			case near(q.Quantile(), 0.50):
				row.P50 = q.Value()
			case near(q.Quantile(), 0.90):
				row.P90 = q.Value()
			case near(q.Quantile(), 0.95):
				row.P95 = q.Value()
			case near(q.Quantile(), 0.99):
				row.P99 = q.Value()
			}
		}

		rows = append(rows, row)
	}
	return rows
}

func (r *OTLPReceiver) latencyFromHistogram(hist pmetric.Histogram, name, serviceName string) []models.StoredLatency {
	dataPoints := hist.DataPoints()
	rows := make([]models.StoredLatency, 0, dataPoints.Len())

	for i := 0; i < dataPoints.Len(); i++ {
		dp := dataPoints.At(i)

		bucketCounts := dp.BucketCounts()
		explicitBounds := dp.ExplicitBounds()
		if bucketCounts.Len() == 0 {
			continue
		}

		buckets := make([]histogram.Bucket, bucketCounts.Len())
		for j := 0; j < bucketCounts.Len(); j++ {
			upperBound := math.Inf(1)
			if j < explicitBounds.Len() {
				upperBound = explicitBounds.At(j)
			}
			buckets[j] = histogram.Bucket{UpperBound: upperBound, Count: bucketCounts.At(j)}
		}

		p50, p90, p95, p99, err := histogram.Quantiles(buckets)
		if err != nil {
			r.logger.Warn("failed to estimate latency quantiles",
				zap.String("metric", name),
				zap.Error(err))
			continue
		}

		rows = append(rows, models.StoredLatency{
			ServiceName: serviceName,
			Timestamp:   dp.Timestamp().AsTime(),
			P50:         p50,
			P90:         p90,
			P95:         p95,
			P99:         p99,
		})
	}
	return rows
}

func (r *OTLPReceiver) convertLogs(ld plog.Logs) []models.StoredLog {
	var rows []models.StoredLog

	resourceLogs := ld.ResourceLogs()
	for i := 0; i < resourceLogs.Len(); i++ {
		rl := resourceLogs.At(i)

		serviceName := ""
		if attr, ok := rl.Resource().Attributes().Get("service.name"); ok {
			serviceName = attr.AsString()
		}

		scopeLogs := rl.ScopeLogs()
		for j := 0; j < scopeLogs.Len(); j++ {
			records := scopeLogs.At(j).LogRecords()
			for k := 0; k < records.Len(); k++ {
				lr := records.At(k)
				rows = append(rows, models.StoredLog{
					ServiceName: serviceName,
					Timestamp:   lr.Timestamp().AsTime(),
					Severity:    lr.SeverityText(),
					Message:     lr.Body().AsString(),
				})
			}
		}
	}

	return rows
}

func numberValue(dp pmetric.NumberDataPoint) float64 {
	switch dp.ValueType() {
	case pmetric.NumberDataPointValueTypeInt:
		return float64(dp.IntValue())
	case pmetric.NumberDataPointValueTypeDouble:
		return dp.DoubleValue()
	}
	return 0
}

func statusCode(attrs pcommon.Map, key string) (uint16, bool) {
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}

	switch v.Type() {
	case pcommon.ValueTypeInt:
		return uint16(v.Int()), true
	case pcommon.ValueTypeStr:
		var code int
		if _, err := fmt.Sscanf(v.Str(), "%d", &code); err != nil {
			return 0, false
		}
		return uint16(code), true
	}
	return 0, false
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func (r *OTLPReceiver) Stop() error {
	if r.server != nil {
		r.server.GracefulStop()
	}
	return nil
}
