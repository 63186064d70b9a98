package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kloudmate/telemetry-insight/internal/analysis"
	"github.com/kloudmate/telemetry-insight/internal/clickhouse"
	"github.com/kloudmate/telemetry-insight/internal/processor"
)

// Handler exposes the report API: trigger an analysis run over a stored
// period, fetch a persisted report, and read ingest statistics.
type Handler struct {
	logger    *zap.Logger
	reader    *clickhouse.Reader
	engine    *analysis.Engine
	processor *processor.TelemetryProcessor
}

func NewHandler(reader *clickhouse.Reader, engine *analysis.Engine, proc *processor.TelemetryProcessor, logger *zap.Logger) *Handler {
	return &Handler{
		logger:    logger,
		reader:    reader,
		engine:    engine,
		processor: proc,
	}
}

// Register attaches the API routes to the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/reports", h.handleReports)
	mux.HandleFunc("/api/v1/reports/", h.handleReportByID)
	mux.HandleFunc("/api/v1/stats", h.handleStats)
}

type analyzeRequest struct {
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, req.PeriodStart)
	if err != nil {
		http.Error(w, "invalid periodStart: "+err.Error(), http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, req.PeriodEnd)
	if err != nil {
		http.Error(w, "invalid periodEnd: "+err.Error(), http.StatusBadRequest)
		return
	}

	data, err := h.reader.FetchPeriod(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to fetch period data", zap.Error(err))
		analysesTotal.WithLabelValues("fetch_error").Inc()
		http.Error(w, "failed to fetch telemetry", http.StatusInternalServerError)
		return
	}

	began := time.Now()
	report, err := h.engine.Analyze(r.Context(), analysis.Input{
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		CPU:         data.CPU,
		Memory:      data.Memory,
		Latency:     data.Latency,
		Status:      data.Status,
		Logs:        data.Logs,
	})
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidInput) {
			analysesTotal.WithLabelValues("invalid_input").Inc()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("analysis failed", zap.Error(err))
		analysesTotal.WithLabelValues("error").Inc()
		http.Error(w, "analysis failed", http.StatusInternalServerError)
		return
	}

	analysisDuration.Observe(time.Since(began).Seconds())
	analysesTotal.WithLabelValues("ok").Inc()
	anomalyWindowsTotal.Add(float64(report.AnomalyCount))

	if err := h.reader.WriteReport(r.Context(), report); err != nil {
		// The report is already computed; losing persistence should not
		// lose the response.
		h.logger.Error("failed to persist report", zap.Error(err))
	}

	h.respondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}

	report, err := h.reader.FetchReport(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to fetch report", zap.String("report_id", id), zap.Error(err))
		http.Error(w, "failed to fetch report", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.processor.GetStats()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"processed": stats.ProcessedCount,
		"dropped":   stats.DroppedCount,
		"errors":    stats.ErrorCount,
	})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
