package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/petclub-iam/internal/infra/config"
)

func TestAuthMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewAuthMetrics(reg, "test")
	if err != nil {
		t.Fatalf("NewAuthMetrics: %v", err)
	}

	metrics.ObserveSignIn(OutcomeSuccess)
	metrics.ObserveSignIn(OutcomeSuccess)
	metrics.ObserveSignIn(OutcomeFailure)
	metrics.ObserveRefresh(OutcomeReuse)
	metrics.ObserveRevocation(ReasonSignOut)

	if got := testutil.ToFloat64(metrics.SignIns.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successful sign-ins, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.SignIns.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Fatalf("expected 1 failed sign-in, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Refreshes.WithLabelValues(OutcomeReuse)); got != 1 {
		t.Fatalf("expected 1 reuse, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Revocations.WithLabelValues(ReasonSignOut)); got != 1 {
		t.Fatalf("expected 1 revocation, got %v", got)
	}
}

func TestAuthMetricsReuseRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewAuthMetrics(reg, "test")
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	second, err := NewAuthMetrics(reg, "test")
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	if first.SignIns != second.SignIns {
		t.Fatalf("expected collectors to be shared")
	}
}

func TestNilAuthMetricsIsSafe(t *testing.T) {
	var metrics *AuthMetrics
	metrics.ObserveSignIn(OutcomeSuccess)
	metrics.ObserveRefresh(OutcomeSuccess)
	metrics.ObserveRevocation(ReasonRefresh)
}

func TestDisabledTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{ServiceName: "petclub-iam"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	if span.SpanContext().IsSampled() {
		t.Fatalf("disabled tracing must not sample")
	}
	span.End()
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
