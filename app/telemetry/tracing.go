// Package telemetry provides OpenTelemetry tracing and metrics instrumentation
// for the merit ledger. Every ledger transaction runs inside a span and is
// counted by an operation counter exported through Prometheus.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "merit-ledger"
	serviceVersion = "1.0.0"

	exportBatchSize  = 256
	exportQueueSize  = 4096
	exportBatchDelay = 2 * time.Second
)

// Config selects what the ledger exports.
type Config struct {
	// Enabled turns on span export to Endpoint. Endpoint accepts host:port
	// (plain HTTP) or a full http(s) URL.
	Enabled     bool
	Endpoint    string
	SampleRate  float64
	Environment string
	ChainID     string

	// PrometheusEnabled exposes otel instruments on the default Prometheus
	// registry next to the keeper metrics.
	PrometheusEnabled bool
}

// Provider owns the tracer and meter providers of one ledger process.
type Provider struct {
	tracerProvider *tracesdk.TracerProvider
	meterProvider  *metricsdk.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	operations     metric.Int64Counter
	once           sync.Once
	config         Config
}

// NewProvider builds the exporters described by cfg and installs them as the
// otel globals. A disabled provider hands out the global no-op tracer and meter.
func NewProvider(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	host, insecure, err := traceTarget(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return nil, fmt.Errorf("sample rate %v must be between 0 and 1", cfg.SampleRate)
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
		attribute.String("environment", cfg.Environment),
		attribute.String("chain.id", cfg.ChainID),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	if p.tracerProvider, err = newTracerProvider(res, host, insecure, cfg.SampleRate); err != nil {
		return nil, err
	}
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer(serviceName)

	if cfg.PrometheusEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("prometheus metric exporter: %w", err)
		}
		p.meterProvider = metricsdk.NewMeterProvider(
			metricsdk.WithResource(res),
			metricsdk.WithReader(exporter),
		)
		otel.SetMeterProvider(p.meterProvider)
		p.meter = p.meterProvider.Meter(serviceName)
	}
	return p, nil
}

// traceTarget splits a configured endpoint into the collector host and
// whether the connection is plain HTTP.
func traceTarget(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, errors.New("trace endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid trace endpoint: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return "", false, fmt.Errorf("trace endpoint scheme %q is not http(s)", u.Scheme)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("trace endpoint %q has no host", endpoint)
	}
	return u.Host, u.Scheme == "http", nil
}

func newTracerProvider(res *resource.Resource, host string, insecure bool, sampleRate float64) (*tracesdk.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(host),
		otlptracehttp.WithURLPath("/v1/traces"),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	return tracesdk.NewTracerProvider(
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(sampleRate))),
		tracesdk.WithBatcher(exporter,
			tracesdk.WithMaxExportBatchSize(exportBatchSize),
			tracesdk.WithMaxQueueSize(exportQueueSize),
			tracesdk.WithBatchTimeout(exportBatchDelay),
		),
	), nil
}

// Shutdown flushes pending spans and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Tracer returns the ledger tracer, or the global one when disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return otel.Tracer(serviceName)
	}
	return p.tracer
}

// Meter returns the ledger meter, or the global one when disabled.
func (p *Provider) Meter() metric.Meter {
	if p == nil || p.meter == nil {
		return otel.Meter(serviceName)
	}
	return p.meter
}

// StartOperationSpan starts the span of one ledger transaction.
func StartOperationSpan(ctx context.Context, tracer trace.Tracer, operation string, height int64) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = otel.Tracer(serviceName)
	}
	return tracer.Start(ctx, "merit."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("merit.operation", operation),
			attribute.Int64("block.height", height),
		),
	)
}

// CountOperation records the outcome of a ledger transaction on the
// operations counter.
func (p *Provider) CountOperation(ctx context.Context, operation string, err error) {
	if p == nil {
		return
	}
	p.once.Do(func() {
		counter, cerr := p.Meter().Int64Counter("merit.operations",
			metric.WithDescription("Ledger transactions by operation and outcome"))
		if cerr == nil {
			p.operations = counter
		}
	})
	if p.operations == nil {
		return
	}
	p.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	))
}

// EndOperationSpan marks span failed when err is set and ends it.
func EndOperationSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// HealthCheck reports a provider whose enabled exporters failed to start.
func (p *Provider) HealthCheck() error {
	switch {
	case p == nil || !p.config.Enabled:
		return nil
	case p.tracer == nil:
		return errors.New("tracer provider not initialized")
	case p.config.PrometheusEnabled && p.meter == nil:
		return errors.New("prometheus enabled but meter provider not initialized")
	}
	return nil
}
