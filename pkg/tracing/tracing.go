package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "streampay"

type TracerProvider struct {
	tp *tracesdk.TracerProvider
}

type Config struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	JaegerURL   string  `yaml:"jaeger_url"`
	Environment string  `yaml:"environment"`
	SampleRate  float64 `yaml:"sample_rate"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "escrowd",
		JaegerURL:   "http://localhost:14268/api/traces",
		Environment: "development",
		SampleRate:  1.0,
	}
}

// Init installs a global tracer provider exporting to Jaeger. When tracing is
// disabled the global no-op provider stays in place.
func Init(cfg Config) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{}, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{tp: tp}, nil
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.tp != nil {
		return tp.tp.Shutdown(ctx)
	}
	return nil
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

var (
	TransitionKey = attribute.Key("escrow.transition")
	SignerKey     = attribute.Key("escrow.signer")
	StreamKeyKey  = attribute.Key("escrow.stream_key")
	AddressKey    = attribute.Key("escrow.address")
	AmountKey     = attribute.Key("escrow.amount")
	ValueKey      = attribute.Key("escrow.value")
	AccountsKey   = attribute.Key("ledger.accounts")
)

// TraceTransition starts the span wrapping one ledger execution.
func TraceTransition(ctx context.Context, kind, signer string, accounts int) (context.Context, trace.Span) {
	return StartSpan(ctx, "escrow."+kind,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			TransitionKey.String(kind),
			SignerKey.String(signer),
			AccountsKey.Int(accounts),
		),
	)
}

func TraceHTTPRequest(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("http.%s %s", method, route),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
}
