// SPDX-License-Identifier: MPL-2.0

// Package telemetry sets up OpenTelemetry tracing for fedhost.
package telemetry

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Settings is read from the environment.
type Settings struct {
	// Endpoint is the OTLP/HTTP collector URL. Tracing stays off when empty.
	Endpoint string `env:"FEDHOST_OTEL_ENDPOINT"`
	// Enabled turns tracing off when false, even with an endpoint.
	Enabled bool `env:"FEDHOST_OTEL_ENABLED" envDefault:"true"`
	// SampleRatio is the fraction of resolves traced.
	SampleRatio float64 `env:"FEDHOST_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// LoadSettings parses Settings from the process environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse telemetry env: %w", err)
	}
	return s, nil
}

// Active reports whether s enables tracing.
func (s Settings) Active() bool {
	return s.Enabled && s.Endpoint != ""
}

// Setup initialises tracing from the environment. When tracing is not
// enabled it returns a no-op shutdown and registers no global provider.
func Setup(ctx context.Context, serviceName, version string) (ShutdownFunc, error) {
	s, err := LoadSettings()
	if err != nil {
		return noop, err
	}
	return SetupWith(ctx, s, serviceName, version)
}

// SetupWith is Setup with explicit settings.
func SetupWith(ctx context.Context, s Settings, serviceName, version string) (ShutdownFunc, error) {
	if !s.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(s.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return noop, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(s.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func noop(context.Context) error { return nil }
