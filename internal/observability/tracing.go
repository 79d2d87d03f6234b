package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry TracerProvider configured for Shannon's
// three hot spans: pipeline.handle, tools.execute, llm.complete.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// TraceConfig configures the exporter destination.
type TraceConfig struct {
	ServiceName string
	Environment string
	Endpoint    string // OTLP gRPC collector endpoint, e.g. "localhost:4317"
}

// NewTracer constructs a Tracer exporting spans via OTLP/gRPC. The
// returned shutdown func must be called on process exit to flush
// pending spans.
func NewTracer(ctx context.Context, cfg TraceConfig) (*Tracer, func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, nil, fmt.Errorf("observability: new otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("observability: new resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t := &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}
	return t, provider.Shutdown, nil
}

// StartPipelineSpan starts the "pipeline.handle" span for one inbound
// message.
func (t *Tracer) StartPipelineSpan(ctx context.Context, platform, channel string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.handle",
		trace.WithAttributes(attribute.String("platform", platform), attribute.String("channel", channel)))
}

// StartToolSpan starts the "tools.execute" span for one tool call.
func (t *Tracer) StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "tools.execute", trace.WithAttributes(attribute.String("tool", toolName)))
}

// StartLLMSpan starts the "llm.complete" span for one provider call.
func (t *Tracer) StartLLMSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "llm.complete",
		trace.WithAttributes(attribute.String("provider", provider), attribute.String("model", model)))
}

// EndWithError records err on span (if non-nil) and sets the span's
// status before ending it.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
