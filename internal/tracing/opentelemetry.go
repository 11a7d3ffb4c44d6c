// Package tracing wires OpenTelemetry spans around pipeline stages.
package tracing

import (
	"context"
	"fmt"
	"time"

	"papercrumpler/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "papercrumpler"
	shutdownTimeout     = 5 * time.Second
)

// Span attribute keys
const (
	AttrItemID     = attribute.Key("item.id")
	AttrItemSender = attribute.Key("item.sender")
	AttrItemSource = attribute.Key("item.source")
	AttrStage      = attribute.Key("pipeline.stage")
	AttrNotifyKind = attribute.Key("notification.kind")
)

// DefaultConfig returns tracing defaults for serviceName
func DefaultConfig(serviceName string) models.TracingConfig {
	return models.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		OTLPEndpoint:   "http://localhost:4318/v1/traces",
		SampleRate:     0.1,
		UseStdout:      true,
	}
}

// Validate checks an enabled tracing config
func Validate(cfg models.TracingConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be between 0 and 1, got %v", cfg.SampleRate)
	}
	if !cfg.UseStdout && cfg.OTLPEndpoint == "" {
		return fmt.Errorf("otlp_endpoint is required when use_stdout is false")
	}
	return nil
}

// Manager owns the tracer provider lifecycle
type Manager struct {
	config         models.TracingConfig
	logger         *logrus.Logger
	tracerProvider *trace.TracerProvider
}

func NewManager(config models.TracingConfig, logger *logrus.Logger) *Manager {
	return &Manager{config: config, logger: logger}
}

// Initialize installs the global tracer provider. It is a no-op when tracing
// is disabled.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.Debug("Tracing is disabled")
		return nil
	}
	if err := Validate(m.config); err != nil {
		return fmt.Errorf("invalid tracing config: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(m.config.ServiceName),
			semconv.ServiceVersionKey.String(m.config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(m.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter trace.SpanExporter
	if m.config.UseStdout {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	} else {
		exporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(m.config.OTLPEndpoint))
		if err != nil {
			return fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
		}
	}

	m.install(trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(m.config.SampleRate))),
	))

	m.logger.WithFields(logrus.Fields{
		"service":     m.config.ServiceName,
		"sample_rate": m.config.SampleRate,
		"stdout":      m.config.UseStdout,
	}).Info("Tracing initialized")
	return nil
}

func (m *Manager) install(tp *trace.TracerProvider) {
	m.tracerProvider = tp
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

// Shutdown flushes pending spans
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.tracerProvider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := m.tracerProvider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}

// StartSpan starts a span on the global tracer
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// StartItemSpan starts a span for one pipeline stage of a pending item.
func StartItemSpan(ctx context.Context, stage, itemID string) (context.Context, oteltrace.Span) {
	return StartSpan(ctx, "item."+stage, AttrStage.String(stage), AttrItemID.String(itemID))
}

// RecordError marks the span in ctx as failed
func RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := oteltrace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, oteltrace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanAttributes annotates the span in ctx
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := oteltrace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// TraceID returns the trace id of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := oteltrace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
