package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
)

func TestInitTracerProviderWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracerProvider(context.Background(), config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("expected shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInjectExtractRoundTrip(t *testing.T) {
	if _, err := InitTracerProvider(context.Background(), config.TelemetryConfig{}, "test"); err != nil {
		t.Fatalf("init: %v", err)
	}

	traceID, _ := oteltrace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := oteltrace.SpanIDFromHex("00f067aa0ba902b7")
	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: oteltrace.FlagsSampled,
		Remote:     true,
	})
	ctx := oteltrace.ContextWithSpanContext(context.Background(), sc)

	attrs := Inject(ctx, nil)
	if attrs["traceparent"] == "" {
		t.Fatalf("expected traceparent attribute, got %v", attrs)
	}

	got := oteltrace.SpanContextFromContext(Extract(context.Background(), attrs))
	if got.TraceID() != traceID {
		t.Fatalf("trace id mismatch: %s", got.TraceID())
	}
}

func TestTrimScheme(t *testing.T) {
	if got := trimScheme("http://collector:4317"); got != "collector:4317" {
		t.Fatalf("unexpected endpoint %q", got)
	}
	if got := trimScheme("collector:4317"); got != "collector:4317" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}

func TestInitMeterProviderExportsToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	shutdown, err := InitMeterProvider(config.TelemetryConfig{ServiceVersion: "test"}, "orderflow-test", reg)
	if err != nil {
		t.Fatalf("init meter provider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	counter, err := otel.Meter("orderflow/test").Int64Counter("orderflow.test.events")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(context.Background(), 2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "orderflow_test_events") {
			found = true
		}
	}
	if !found {
		t.Fatalf("otel counter not exported to registry")
	}
}
