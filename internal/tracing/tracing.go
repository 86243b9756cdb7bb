package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// EnabledEnv switches the OTLP exporter on when set to "true".
	EnabledEnv = "KARAJAN_OTEL_ENABLED"
	// SampleRatioEnv sets the fraction of root updates that are traced.
	SampleRatioEnv = "KARAJAN_OTEL_SAMPLE_RATIO"
)

// Config holds tracing configuration. Bot, Runtime and ABI end up as
// resource attributes so every span of one host can be found by bot.
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	SampleRatio float64

	Bot     string
	Runtime string
	ABI     string
}

// GetConfig reads tracing configuration from the environment.
// OTEL_EXPORTER_OTLP_ENDPOINT defaults to "localhost:4317". An unparsable or
// out of range sample ratio falls back to 1.
func GetConfig(serviceName string) Config {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	ratio := 1.0
	if v := os.Getenv(SampleRatioEnv); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r >= 0 && r <= 1 {
			ratio = r
		}
	}
	return Config{
		Enabled:     strings.EqualFold(os.Getenv(EnabledEnv), "true"),
		Endpoint:    endpoint,
		ServiceName: serviceName,
		SampleRatio: ratio,
	}
}

// Initialize installs the W3C propagator and, when enabled, a batching OTLP
// tracer provider. A disabled config yields a no-op tracer so spans can be
// started unconditionally.
func Initialize(cfg Config, logger *slog.Logger) (trace.Tracer, func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		logger.Info("tracing disabled, using no-op tracer")
		return noop.NewTracerProvider().Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}

	logger.Info("initializing tracing", "endpoint", cfg.Endpoint, "service", cfg.ServiceName, "sample_ratio", cfg.SampleRatio)

	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(resourceAttributes(cfg)...),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		logger.Info("shutting down tracer provider")
		return tp.Shutdown(ctx)
	}
	return tp.Tracer(cfg.ServiceName), shutdown, nil
}

func resourceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.Bot != "" {
		attrs = append(attrs, attribute.String(AttrBot, cfg.Bot))
	}
	if cfg.Runtime != "" {
		attrs = append(attrs, attribute.String(AttrRuntime, cfg.Runtime))
	}
	if cfg.ABI != "" {
		attrs = append(attrs, attribute.String(AttrABI, cfg.ABI))
	}
	return attrs
}

// sampler respects the caller's sampling decision and samples new traces at
// ratio.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
