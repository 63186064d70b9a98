// loadgen emits synthetic deployment telemetry against the OTLP receiver:
// CPU and memory gauges, a status-coded request counter, and a latency
// histogram, with an optional incident burst partway through the run.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	endpoint    = flag.String("endpoint", "localhost:4317", "OTLP endpoint")
	serviceName = flag.String("service", "demo-service", "Service name")
	duration    = flag.Duration("duration", 5*time.Minute, "Run duration")
	interval    = flag.Duration("interval", 10*time.Second, "Export interval")
	incident    = flag.Bool("incident", true, "Inject a CPU/error burst mid-run")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	conn, err := grpc.DialContext(ctx, *endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		log.Fatalf("Failed to create gRPC connection: %v", err)
	}
	defer conn.Close()

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		log.Fatalf("Failed to create metric exporter: %v", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(*serviceName),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(*interval))),
	)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shut down meter provider: %v", err)
		}
	}()

	meter := provider.Meter("telemetry-insight/loadgen")

	started := time.Now()
	inBurst := func() bool {
		if !*incident {
			return false
		}
		elapsed := time.Since(started)
		// One burst window in the middle fifth of the run.
		return elapsed > 2**duration/5 && elapsed < 3**duration/5
	}

	_, err = meter.Float64ObservableGauge("system.cpu.utilization",
		metric.WithDescription("CPU cores in use"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			value := 0.5 + rand.Float64()*0.05
			if inBurst() {
				value = 0.95 + rand.Float64()*0.05
			}
			o.Observe(value)
			return nil
		}))
	if err != nil {
		log.Fatalf("Failed to create CPU gauge: %v", err)
	}

	_, err = meter.Float64ObservableGauge("system.memory.usage",
		metric.WithDescription("Memory in use, GB"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(2.0 + rand.Float64()*0.25)
			return nil
		}))
	if err != nil {
		log.Fatalf("Failed to create memory gauge: %v", err)
	}

	requests, err := meter.Float64Counter("http.server.request.count",
		metric.WithDescription("HTTP requests by status code"))
	if err != nil {
		log.Fatalf("Failed to create request counter: %v", err)
	}

	latency, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request latency, ms"))
	if err != nil {
		log.Fatalf("Failed to create latency histogram: %v", err)
	}

	statusKey := attribute.Key("http.response.status_code")

	log.Printf("Emitting telemetry to %s for %s", *endpoint, *duration)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Run complete")
			return
		case <-ticker.C:
			burst := inBurst()

			requests.Add(ctx, float64(80+rand.Intn(40)), metric.WithAttributes(statusKey.Int(200)))
			requests.Add(ctx, float64(rand.Intn(5)), metric.WithAttributes(statusKey.Int(404)))
			if burst {
				requests.Add(ctx, float64(10+rand.Intn(20)), metric.WithAttributes(statusKey.Int(500)))
			}

			base := 40.0 + rand.Float64()*20
			if burst {
				base *= 6
			}
			for i := 0; i < 20; i++ {
				latency.Record(ctx, base*(0.5+rand.Float64()))
			}
		}
	}
}
