package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kloudmate/telemetry-insight/internal/analysis"
	"github.com/kloudmate/telemetry-insight/internal/api"
	"github.com/kloudmate/telemetry-insight/internal/clickhouse"
	"github.com/kloudmate/telemetry-insight/internal/processor"
	"github.com/kloudmate/telemetry-insight/internal/receiver"
	"github.com/kloudmate/telemetry-insight/pkg/promread"
)

type Config struct {
	Receiver struct {
		OTLP struct {
			Address         string `yaml:"address"`
			CPUMetric       string `yaml:"cpu_metric"`
			MemoryMetric    string `yaml:"memory_metric"`
			LatencyMetric   string `yaml:"latency_metric"`
			RequestsMetric  string `yaml:"requests_metric"`
			StatusAttribute string `yaml:"status_attribute"`
		} `yaml:"otlp"`
	} `yaml:"receiver"`

	ClickHouse struct {
		Addresses     []string      `yaml:"addresses"`
		Database      string        `yaml:"database"`
		Username      string        `yaml:"username"`
		Password      string        `yaml:"password"`
		BatchSize     int           `yaml:"batch_size"`
		FlushInterval time.Duration `yaml:"flush_interval"`
		MaxIdleConns  int           `yaml:"max_idle_conns"`
		MaxOpenConns  int           `yaml:"max_open_conns"`
	} `yaml:"clickhouse"`

	Processor struct {
		ConvertToDelta bool `yaml:"convert_to_delta"`
	} `yaml:"processor"`

	API struct {
		Address string `yaml:"address"`
	} `yaml:"api"`

	RemoteRead struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"remote_read"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chConfig := &clickhouse.Config{
		Addresses:     cfg.ClickHouse.Addresses,
		Database:      cfg.ClickHouse.Database,
		Username:      cfg.ClickHouse.Username,
		Password:      cfg.ClickHouse.Password,
		BatchSize:     cfg.ClickHouse.BatchSize,
		FlushInterval: cfg.ClickHouse.FlushInterval,
		MaxIdleConns:  cfg.ClickHouse.MaxIdleConns,
		MaxOpenConns:  cfg.ClickHouse.MaxOpenConns,
	}

	chWriter, err := clickhouse.NewWriter(chConfig, logger)
	if err != nil {
		logger.Fatal("Failed to create ClickHouse writer", zap.Error(err))
	}
	defer chWriter.Close()

	chReader, err := clickhouse.NewReader(chConfig, logger)
	if err != nil {
		logger.Fatal("Failed to create ClickHouse reader", zap.Error(err))
	}
	defer chReader.Close()

	telemetryProcessor := processor.NewTelemetryProcessor(&processor.Config{
		ConvertToDelta: cfg.Processor.ConvertToDelta,
	}, chWriter, logger)
	defer telemetryProcessor.Close()

	otlpReceiver := receiver.NewOTLPReceiver(&receiver.Config{
		Address:         cfg.Receiver.OTLP.Address,
		CPUMetric:       cfg.Receiver.OTLP.CPUMetric,
		MemoryMetric:    cfg.Receiver.OTLP.MemoryMetric,
		LatencyMetric:   cfg.Receiver.OTLP.LatencyMetric,
		RequestsMetric:  cfg.Receiver.OTLP.RequestsMetric,
		StatusAttribute: cfg.Receiver.OTLP.StatusAttribute,
	}, telemetryProcessor, logger)

	go func() {
		if err := otlpReceiver.Start(ctx); err != nil {
			logger.Fatal("Failed to start OTLP receiver", zap.Error(err))
		}
	}()

	engine := analysis.NewEngine(logger)
	handler := api.NewHandler(chReader, engine, telemetryProcessor, logger)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	if cfg.RemoteRead.Enabled {
		remoteReadHandler, err := promread.NewHandler(chConfig, logger)
		if err != nil {
			logger.Fatal("Failed to create remote read handler", zap.Error(err))
		}
		defer remoteReadHandler.Close()
		mux.Handle("/api/v1/read", remoteReadHandler)
	}

	server := &http.Server{
		Addr:    cfg.API.Address,
		Handler: mux,
	}

	go func() {
		logger.Info("Starting API server", zap.String("address", cfg.API.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Telemetry insight service started successfully")

	<-sigChan
	logger.Info("Shutting down telemetry insight service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down API server", zap.Error(err))
	}

	if err := chWriter.Flush(shutdownCtx); err != nil {
		logger.Error("Failed to flush telemetry on shutdown", zap.Error(err))
	}

	if err := otlpReceiver.Stop(); err != nil {
		logger.Error("Failed to stop OTLP receiver", zap.Error(err))
	}

	logger.Info("Telemetry insight service shutdown complete")
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	setDefaults(&cfg)

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Receiver.OTLP.Address == "" {
		cfg.Receiver.OTLP.Address = ":4317"
	}

	if cfg.Receiver.OTLP.CPUMetric == "" {
		cfg.Receiver.OTLP.CPUMetric = "system.cpu.utilization"
	}

	if cfg.Receiver.OTLP.MemoryMetric == "" {
		cfg.Receiver.OTLP.MemoryMetric = "system.memory.usage"
	}

	if cfg.Receiver.OTLP.LatencyMetric == "" {
		cfg.Receiver.OTLP.LatencyMetric = "http.server.duration"
	}

	if cfg.Receiver.OTLP.RequestsMetric == "" {
		cfg.Receiver.OTLP.RequestsMetric = "http.server.request.count"
	}

	if cfg.Receiver.OTLP.StatusAttribute == "" {
		cfg.Receiver.OTLP.StatusAttribute = "http.response.status_code"
	}

	if cfg.ClickHouse.BatchSize == 0 {
		cfg.ClickHouse.BatchSize = 1000
	}

	if cfg.ClickHouse.FlushInterval == 0 {
		cfg.ClickHouse.FlushInterval = 10 * time.Second
	}

	if cfg.ClickHouse.MaxIdleConns == 0 {
		cfg.ClickHouse.MaxIdleConns = 5
	}

	if cfg.ClickHouse.MaxOpenConns == 0 {
		cfg.ClickHouse.MaxOpenConns = 10
	}

	if cfg.API.Address == "" {
		cfg.API.Address = ":9201"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = zapLevel
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zap.ISO8601TimeEncoder

	return config.Build()
}
