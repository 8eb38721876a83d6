package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	reportCounter  otelmetric.Int64Counter
	reportDuration otelmetric.Float64Histogram
}

type options struct {
	spanProcessors []sdktrace.SpanProcessor
}

type Option func(*options)

// WithSpanProcessor attaches a processor (exporter pipeline or recorder) to the tracer provider.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// New wires an OTel meter provider exported through the default Prometheus registry
// and installs an SDK tracer provider as the global one.
// On exporter failure metrics fall back to no-op instruments; tracing is still installed.
func New(serviceName string, opts ...Option) (*Observability, error) {
	tp := newTracerProvider(serviceName, opts)
	otel.SetTracerProvider(tp)

	exporter, err := prometheus.New()
	if err != nil {
		o := newNoop(serviceName, tp)
		return o, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o := &Observability{
		meterProvider:  provider,
		tracerProvider: tp,
		meter:          provider.Meter(serviceName),
		tracer:         tp.Tracer(serviceName),
	}
	o.initInstruments()
	return o, nil
}

// NewNoop returns metric instruments that record nothing. Spans are recorded
// only when a processor is passed, and the global providers are left alone.
func NewNoop(serviceName string, opts ...Option) *Observability {
	return newNoop(serviceName, newTracerProvider(serviceName, opts))
}

func newNoop(serviceName string, tp *sdktrace.TracerProvider) *Observability {
	o := &Observability{
		tracerProvider: tp,
		meter:          noop.NewMeterProvider().Meter(serviceName),
		tracer:         tp.Tracer(serviceName),
	}
	o.initInstruments()
	return o
}

func newTracerProvider(serviceName string, opts []Option) *sdktrace.TracerProvider {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	}
	for _, sp := range cfg.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	return sdktrace.NewTracerProvider(tpOpts...)
}

func (o *Observability) initInstruments() {
	o.reportCounter, _ = o.meter.Int64Counter(
		"zone.reports",
		otelmetric.WithDescription("Number of zone reports generated"),
	)
	o.reportDuration, _ = o.meter.Float64Histogram(
		"zone.report.duration",
		otelmetric.WithDescription("Zone report generation duration"),
		otelmetric.WithUnit("ms"),
	)
}

// StartSpan starts a span on the service tracer provider.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordReport(ctx context.Context, status string, zone string) {
	if o.reportCounter != nil {
		o.reportCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
			attribute.String("zone", zone),
		))
	}
}

func (o *Observability) RecordReportDuration(ctx context.Context, duration time.Duration, status string) {
	if o.reportDuration != nil {
		o.reportDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// TraceID returns the trace id carried by ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
