package otelx

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is host:port of a gRPC collector.
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
}

// ConfigFromEnv reads the OTEL_* keys. Export stays off unless OTEL_ENABLED
// is true; bad values fall back to defaults rather than failing startup.
func ConfigFromEnv(serviceName string) Config {
	enabled, _ := config.Bool("OTEL_ENABLED", false)
	insecure, err := config.Bool("OTEL_EXPORTER_OTLP_INSECURE", true)
	if err != nil {
		insecure = true
	}

	endpoint := config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")

	ratio, err := strconv.ParseFloat(config.String("OTEL_SAMPLING_RATIO", "1"), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		ratio = 1
	}

	return Config{
		Enabled:        enabled,
		ServiceName:    serviceName,
		ServiceVersion: config.String("OTEL_SERVICE_VERSION", "dev"),
		Environment:    config.String("APP_ENV", "local"),
		OTLPEndpoint:   endpoint,
		Insecure:       insecure,
		SampleRatio:    ratio,
	}
}

// Setup installs the W3C propagators and, when enabled, a batching OTLP
// tracer provider. The returned func flushes and stops it.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithTimeout(3 * time.Second),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(cfg)...))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func resourceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	return attrs
}
