// Package observability exposes engine metrics to Prometheus and sets up
// OpenTelemetry tracing for runs.
package observability

import (
	"fmt"
	"net/http"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector mirrors correlator.Metrics into Prometheus gauges. The
// engine keeps cumulative counts, so every series is a gauge set from the
// latest snapshot rather than a counter incremented per event.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	VirtualTime   prometheus.Gauge
	Notifications *prometheus.GaugeVec // label: kind
	Records       *prometheus.GaugeVec // label: kind
	Anomalies     *prometheus.GaugeVec // label: kind
	SamplerPasses *prometheus.GaugeVec // label: sampler
	Flows         prometheus.Gauge
	Entities      prometheus.Gauge
	Cells         prometheus.Gauge
	Stopped       prometheus.Gauge
}

// NewEngineCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &EngineCollector{gatherer: gatherer}
	var err error

	if c.VirtualTime, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "handover_virtual_time_seconds",
		Help: "Engine virtual clock in seconds.",
	}), "handover_virtual_time_seconds"); err != nil {
		return nil, err
	}
	if c.Notifications, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "handover_notifications",
		Help: "Notifications processed since start, by kind.",
	}, []string{"kind"}), "handover_notifications"); err != nil {
		return nil, err
	}
	if c.Records, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "handover_records",
		Help: "Event log rows written since start, by record kind.",
	}, []string{"kind"}), "handover_records"); err != nil {
		return nil, err
	}
	if c.Anomalies, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "handover_input_anomalies",
		Help: "Degraded or out-of-order input handled since start, by kind.",
	}, []string{"kind"}), "handover_input_anomalies"); err != nil {
		return nil, err
	}
	if c.SamplerPasses, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "handover_sampler_passes",
		Help: "Periodic sampler passes since start, by sampler.",
	}, []string{"sampler"}), "handover_sampler_passes"); err != nil {
		return nil, err
	}
	if c.Flows, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "handover_flows_attributed",
		Help: "Flow endpoints resolved to an entity on the last traffic pass.",
	}), "handover_flows_attributed"); err != nil {
		return nil, err
	}
	if c.Entities, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "handover_tracked_entities",
		Help: "Entities present in the state store.",
	}), "handover_tracked_entities"); err != nil {
		return nil, err
	}
	if c.Cells, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "handover_tracked_cells",
		Help: "Cells with at least one broadcast link quality sample.",
	}), "handover_tracked_cells"); err != nil {
		return nil, err
	}
	if c.Stopped, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "handover_stopped",
		Help: "1 when a fatal error stopped the run.",
	}), "handover_stopped"); err != nil {
		return nil, err
	}
	return c, nil
}

// Update sets every gauge from a metrics snapshot
func (c *EngineCollector) Update(m *correlator.Metrics) {
	if c == nil || m == nil {
		return
	}
	c.VirtualTime.Set(m.Timestamp)

	c.Notifications.WithLabelValues("handover_start").Set(float64(m.HandoverStarts))
	c.Notifications.WithLabelValues("handover_complete").Set(float64(m.HandoversCompleted))
	c.Notifications.WithLabelValues("connection_established").Set(float64(m.ConnectionsEstablished))
	c.Notifications.WithLabelValues("link_quality_sample").Set(float64(m.LinkQualitySamples))
	c.Notifications.WithLabelValues("measurement_report").Set(float64(m.MeasurementReports))

	c.Records.WithLabelValues(correlator.RecordHandover.String()).Set(float64(m.HandoverRecords))
	c.Records.WithLabelValues(correlator.RecordMeasurement.String()).Set(float64(m.MeasurementRecords))

	c.Anomalies.WithLabelValues("degraded_handover").Set(float64(m.DegradedHandovers))
	c.Anomalies.WithLabelValues("late_notification").Set(float64(m.LateNotifications))
	c.Anomalies.WithLabelValues("stale_observation").Set(float64(m.StaleObservations))
	c.Anomalies.WithLabelValues("defaulted_quality").Set(float64(m.DefaultedQualityUse))

	c.SamplerPasses.WithLabelValues("traffic").Set(float64(m.TrafficPasses))
	c.SamplerPasses.WithLabelValues("snapshot").Set(float64(m.SnapshotPasses))

	c.Flows.Set(float64(m.FlowsAttributed))
	c.Entities.Set(float64(m.TrackedEntities))
	c.Cells.Set(float64(m.TrackedCells))
	if m.IsStopped {
		c.Stopped.Set(1)
	} else {
		c.Stopped.Set(0)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return g, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
