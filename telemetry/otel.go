package telemetry

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/otlptranslator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const scope = "github.com/yairfalse/kartta"

// Global telemetry handles.
var (
	Tracer = otel.Tracer(scope)
	Meter  = otel.Meter(scope)

	// PrometheusRegistry collects the run's metrics; flushed to a
	// textfile at exit since a one-shot job has no scrape surface.
	PrometheusRegistry *promclient.Registry

	FetchErrors   metric.Int64Counter
	RowsExtracted metric.Int64Counter
	LookupEntries metric.Int64Gauge
	CacheHits     metric.Int64Counter
	LookupCalls   metric.Int64Counter
	PhaseDuration metric.Float64Histogram
)

// Config for OTEL initialization.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTELEndpoint   string // empty disables OTLP push
	Insecure       bool
}

// InitOTEL initializes tracing and metrics. OTLP export (traces and
// pushed metrics) is active only when an endpoint is configured;
// Prometheus collection always runs so the textfile flush works.
func InitOTEL(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "kartta"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	traceShutdown, err := setupTraceProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("setup traces: %w", err)
	}

	metricShutdown, err := setupMetricProvider(ctx, cfg, res)
	if err != nil {
		_ = traceShutdown(ctx)
		return nil, fmt.Errorf("setup metrics: %w", err)
	}

	if err := initInstruments(); err != nil {
		_ = traceShutdown(ctx)
		_ = metricShutdown(ctx)
		return nil, fmt.Errorf("init instruments: %w", err)
	}

	return func(ctx context.Context) error {
		var err error
		if e := traceShutdown(ctx); e != nil {
			err = fmt.Errorf("trace shutdown: %w", e)
		}
		if e := metricShutdown(ctx); e != nil && err == nil {
			err = fmt.Errorf("metric shutdown: %w", e)
		}
		return err
	}, nil
}

func setupTraceProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	if cfg.OTELEndpoint == "" {
		// no exporter; spans still exist for log correlation
		provider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		otel.SetTracerProvider(provider)
		Tracer = provider.Tracer(scope)
		return provider.Shutdown, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Tracer = provider.Tracer(scope)

	return provider.Shutdown, nil
}

func setupMetricProvider(ctx context.Context, cfg Config, res *resource.Resource) (func(context.Context) error, error) {
	registry := promclient.NewRegistry()
	PrometheusRegistry = registry

	prometheusExporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
		prometheus.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	readers := []sdkmetric.Reader{prometheusExporter}

	if cfg.OTELEndpoint != "" {
		otlpReader, err := createOTLPReader(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric reader: %w", err)
		}
		readers = append(readers, otlpReader)
	}

	providerOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		providerOpts = append(providerOpts, sdkmetric.WithReader(reader))
	}

	provider := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(provider)
	Meter = provider.Meter(scope)

	return provider.Shutdown, nil
}

func createOTLPReader(ctx context.Context, cfg Config) (sdkmetric.Reader, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.OTELEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(10*time.Second),
	), nil
}

func initInstruments() error {
	var err error

	FetchErrors, err = Meter.Int64Counter("kartta.fetch.errors.total",
		metric.WithDescription("Source fetches that failed and degraded to empty data"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create fetch_errors counter: %w", err)
	}

	RowsExtracted, err = Meter.Int64Counter("kartta.rows.extracted.total",
		metric.WithDescription("Report rows extracted, by report"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create rows_extracted counter: %w", err)
	}

	LookupEntries, err = Meter.Int64Gauge("kartta.lookup.entries.current",
		metric.WithDescription("Distinct identifiers in the resource-service lookup"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create lookup_entries gauge: %w", err)
	}

	CacheHits, err = Meter.Int64Counter("kartta.account.cache.hits.total",
		metric.WithDescription("Account lookups answered from the run cache"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create cache_hits counter: %w", err)
	}

	LookupCalls, err = Meter.Int64Counter("kartta.account.lookup.calls.total",
		metric.WithDescription("Outbound account lookup calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create lookup_calls counter: %w", err)
	}

	PhaseDuration, err = Meter.Float64Histogram("kartta.phase.duration.seconds",
		metric.WithDescription("Duration of pipeline phases"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create phase_duration histogram: %w", err)
	}

	return nil
}

// FlushMetrics writes the run's metrics to a node-exporter style
// textfile. No-op when path is empty or OTEL was never initialized.
func FlushMetrics(path string) error {
	if path == "" || PrometheusRegistry == nil {
		return nil
	}
	if err := promclient.WriteToTextfile(path, PrometheusRegistry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
