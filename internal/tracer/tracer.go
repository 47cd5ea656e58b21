package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	ServiceName    = "macd-cancel"
	instrumentName = "github.com/mmeshcher/macd-cancel"
)

type Config struct {
	Enabled  bool
	Endpoint string
}

// Init installs an OTLP/HTTP tracer provider when tracing is enabled and
// returns its shutdown function. With tracing disabled the global no-op
// provider stays in place.
func Init(ctx context.Context, cfg Config, logger *zap.Logger) func(context.Context) error {
	if !cfg.Enabled {
		logger.Debug("Tracing disabled")
		return func(context.Context) error { return nil }
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("Failed to create OTLP exporter, tracing disabled", zap.Error(err))
		return func(context.Context) error { return nil }
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
		)),
	)

	otel.SetTracerProvider(tp)
	logger.Info("Tracing enabled", zap.String("endpoint", cfg.Endpoint))

	return tp.Shutdown
}

// Flush exports buffered spans. A frozen function instance would lose them
// otherwise.
func Flush(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		return tp.ForceFlush(ctx)
	}
	return nil
}

func Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentName).Start(ctx, name)
}
