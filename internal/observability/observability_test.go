package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestEngineCollector_Update(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewEngineCollector(reg)
	require.NoError(t, err)

	m := correlator.NewMetrics()
	m.Timestamp = 12
	m.HandoversCompleted = 3
	m.MeasurementReports = 7
	m.HandoverRecords = 3
	m.MeasurementRecords = 37
	m.DegradedHandovers = 1
	m.TrafficPasses = 22
	m.TrackedEntities = 10
	m.IsStopped = true
	c.Update(m)

	require.Equal(t, 12.0, testutil.ToFloat64(c.VirtualTime))
	require.Equal(t, 3.0, testutil.ToFloat64(c.Notifications.WithLabelValues("handover_complete")))
	require.Equal(t, 7.0, testutil.ToFloat64(c.Notifications.WithLabelValues("measurement_report")))
	require.Equal(t, 37.0, testutil.ToFloat64(c.Records.WithLabelValues("MEASUREMENT")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Anomalies.WithLabelValues("degraded_handover")))
	require.Equal(t, 22.0, testutil.ToFloat64(c.SamplerPasses.WithLabelValues("traffic")))
	require.Equal(t, 10.0, testutil.ToFloat64(c.Entities))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Stopped))

	// Nil receivers and snapshots are ignored
	var nilCollector *EngineCollector
	nilCollector.Update(m)
	c.Update(nil)
}

func TestEngineCollector_AlreadyRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewEngineCollector(reg)
	require.NoError(t, err)
	second, err := NewEngineCollector(reg)
	require.NoError(t, err)

	// Both collectors share the registered series
	first.Entities.Set(4)
	require.Equal(t, 4.0, testutil.ToFloat64(second.Entities))
}

func TestEngineCollector_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewEngineCollector(reg)
	require.NoError(t, err)
	c.Update(&correlator.Metrics{TrackedCells: 8})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "handover_tracked_cells 8")
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitTracing_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:  true,
		Exporter: "stdout",
		Writer:   &buf,
	}, logging.Noop())
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "scenario.run")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown, nil)
	require.Contains(t, buf.String(), "scenario.run")
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported tracing exporter")
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("HANDOVER_TRACING_ENABLED", "TRUE")
	t.Setenv("HANDOVER_TRACING_EXPORTER", "OTLP")
	t.Setenv("HANDOVER_TRACING_SAMPLE_RATIO", "2.5") // out of range, ignored

	cfg := TracingConfigFromEnv(TracingConfig{SampleRatio: 0.25, ServiceName: "runner"})
	require.True(t, cfg.Enabled)
	require.Equal(t, "otlp", cfg.Exporter)
	require.Equal(t, 0.25, cfg.SampleRatio)
	require.Equal(t, "runner", cfg.ServiceName)
}
