// Package promread serves stored telemetry samples over the Prometheus
// remote-read protocol, so the same data the analysis engine consumes can be
// graphed from any Prometheus-compatible frontend.
package promread

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/prometheus/common/model"
	"github.com/prometheus/prometheus/prompb"
	"github.com/prometheus/prometheus/storage/remote"
	"go.uber.org/zap"

	"github.com/kloudmate/telemetry-insight/internal/clickhouse"
)

// Streams are exposed under these metric names.
var streamMetricNames = map[string]string{
	"telemetry_cpu":         "cpu",
	"telemetry_memory_gb":   "memory",
	"telemetry_http_status": "http_status",
}

type Handler struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewHandler(cfg *clickhouse.Config, logger *zap.Logger) (*Handler, error) {
	conn, err := clickhouse.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Handler{conn: conn, logger: logger}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := remote.DecodeReadRequest(r)
	if err != nil {
		h.logger.Error("Failed to decode read request", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := &prompb.ReadResponse{
		Results: make([]*prompb.QueryResult, 0, len(req.Queries)),
	}

	for _, query := range req.Queries {
		result, err := h.executeQuery(r.Context(), query)
		if err != nil {
			h.logger.Error("Failed to execute read query", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Results = append(resp.Results, result)
	}

	if err := remote.EncodeReadResponse(resp, w); err != nil {
		h.logger.Error("Failed to encode read response", zap.Error(err))
	}
}

func (h *Handler) executeQuery(ctx context.Context, query *prompb.Query) (*prompb.QueryResult, error) {
	stream, serviceName, err := matchTargets(query.Matchers)
	if err != nil {
		return nil, err
	}
	if stream == "" {
		return &prompb.QueryResult{}, nil
	}

	conditions := "stream = ?"
	params := []interface{}{stream}

	if serviceName != "" {
		conditions += " AND serviceName = ?"
		params = append(params, serviceName)
	}
	if query.StartTimestampMs > 0 {
		conditions += " AND timestamp >= ?"
		params = append(params, time.UnixMilli(query.StartTimestampMs))
	}
	if query.EndTimestampMs > 0 {
		conditions += " AND timestamp <= ?"
		params = append(params, time.UnixMilli(query.EndTimestampMs))
	}

	rows, err := h.conn.Query(ctx, fmt.Sprintf(`
		SELECT serviceName, status_code, timestamp, value
		FROM telemetry_samples
		WHERE %s
		ORDER BY serviceName, status_code, timestamp
		LIMIT 100000`, conditions), params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	metricName := metricNameFor(stream)
	seriesMap := make(map[string]*prompb.TimeSeries)
	var keys []string

	for rows.Next() {
		var (
			service   string
			code      uint16
			timestamp time.Time
			value     float64
		)
		if err := rows.Scan(&service, &code, &timestamp, &value); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}

		key := service + "/" + strconv.Itoa(int(code))
		ts, ok := seriesMap[key]
		if !ok {
			ts = &prompb.TimeSeries{
				Labels: buildLabels(metricName, service, code),
			}
			seriesMap[key] = ts
			keys = append(keys, key)
		}

		ts.Samples = append(ts.Samples, prompb.Sample{
			Value:     value,
			Timestamp: timestamp.UnixMilli(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	sort.Strings(keys)
	result := &prompb.QueryResult{
		Timeseries: make([]*prompb.TimeSeries, 0, len(keys)),
	}
	for _, key := range keys {
		result.Timeseries = append(result.Timeseries, seriesMap[key])
	}
	return result, nil
}

// matchTargets extracts the stream and optional service from the query
// matchers. Only equality matchers are supported; anything richer belongs in
// a real TSDB, not this bridge.
func matchTargets(matchers []*prompb.LabelMatcher) (stream, serviceName string, err error) {
	for _, matcher := range matchers {
		if matcher.Type != prompb.LabelMatcher_EQ {
			return "", "", fmt.Errorf("unsupported matcher type %v on label %q", matcher.Type, matcher.Name)
		}

		switch matcher.Name {
		case model.MetricNameLabel:
			s, ok := streamMetricNames[matcher.Value]
			if !ok {
				return "", "", nil
			}
			stream = s
		case "service":
			serviceName = matcher.Value
		}
	}
	return stream, serviceName, nil
}

func metricNameFor(stream string) string {
	for name, s := range streamMetricNames {
		if s == stream {
			return name
		}
	}
	return stream
}

func buildLabels(metricName, service string, code uint16) []prompb.Label {
	labels := []prompb.Label{
		{Name: model.MetricNameLabel, Value: metricName},
	}
	if service != "" {
		labels = append(labels, prompb.Label{Name: "service", Value: service})
	}
	if code != 0 {
		labels = append(labels, prompb.Label{Name: "status_code", Value: strconv.Itoa(int(code))})
	}
	return labels
}

func (h *Handler) Close() error {
	return h.conn.Close()
}
