// Package tracing wires OpenTelemetry for a single screener run.
package tracing

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const TracerName = "github.com/bighogz/form4-screener"

// Setup returns a tracer. When enabled, spans are exported to w as JSON;
// otherwise a no-op tracer is returned. The shutdown func flushes pending spans.
func Setup(enabled bool, w io.Writer) (trace.Tracer, func(context.Context) error, error) {
	if !enabled {
		return noop.NewTracerProvider().Tracer(TracerName), func(context.Context) error { return nil }, nil
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, eris.Wrap(err, "tracing: stdout exporter")
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	otel.SetTracerProvider(tp)
	return tp.Tracer(TracerName), tp.Shutdown, nil
}

// Noop is the tracer used when a component is built without one.
func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer(TracerName)
}
