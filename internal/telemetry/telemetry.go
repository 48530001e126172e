// Package telemetry configures OpenTelemetry tracing for mindwell binaries.
package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbright/mindwell"

// Options controls tracer provider setup.
type Options struct {
	ServiceName string
	// Stdout exports spans as JSON to Writer when true.
	Stdout bool
	Writer io.Writer
}

// Init installs a global tracer provider and returns its shutdown function.
// When no exporter is enabled spans are recorded but never exported.
func Init(_ context.Context, opts Options) (func(context.Context) error, error) {
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "mindwell"
	}
	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	}

	if opts.Stdout {
		exporterOpts := []stdouttrace.Option{}
		if opts.Writer != nil {
			exporterOpts = append(exporterOpts, stdouttrace.WithWriter(opts.Writer))
		}
		exporter, err := stdouttrace.New(exporterOpts...)
		if err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// Tracer returns the shared mindwell tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
