// Package observability wires OpenTelemetry tracing into the Genkit
// TracerProvider.
//
// Spans are exported over OTLP HTTP to a local collector (an OpenTelemetry
// Collector or any agent exposing the OTLP receiver on port 4318). The
// collector handles authentication, buffering, and forwarding to whatever
// backend is configured; the application never holds backend credentials.
//
// Tracing is optional. When no endpoint is configured the setup is a no-op
// and the returned shutdown function does nothing.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName identifies this service in trace backends.
const ServiceName = "roteiro"

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the OTLP HTTP receiver (host:port). Empty disables tracing.
	Endpoint string
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
}

// Setup registers an OTLP HTTP exporter with Genkit's TracerProvider.
// Must run before genkit.Init so Genkit picks up the provider state.
//
// Returns a shutdown function that flushes pending spans. Exporter creation
// failure disables tracing with a warning instead of failing startup.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error) {
	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return noop
	}

	// Genkit's TracerProvider reads service identity from the OTEL env vars.
	// SAFETY: os.Setenv is not concurrent-safe, but Setup runs exactly once
	// during startup before any goroutines spawn.
	_ = os.Setenv("OTEL_SERVICE_NAME", ServiceName)
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		slog.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return noop
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown
}
