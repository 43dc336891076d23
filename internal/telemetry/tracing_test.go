package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupTracing_None(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), ExporterNone, "todos-api", nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupTracing_Unknown(t *testing.T) {
	if _, err := SetupTracing(context.Background(), "jaeger", "todos-api", nil); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestSetupTracing_StdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := SetupTracing(context.Background(), ExporterStdout, "todos-api", &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "todos.Create")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "todos.Create") || !strings.Contains(out, "todos-api") {
		t.Fatalf("expected exported span with service name, got:\n%s", out)
	}
}
