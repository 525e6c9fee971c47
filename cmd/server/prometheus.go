package main

import (
	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// viewerMetrics are the live viewer's Prometheus series: the engine gauges
// plus the number of connected clients
type viewerMetrics struct {
	engine  *observability.EngineCollector
	clients prometheus.Gauge
}

func newViewerMetrics(reg *prometheus.Registry) (*viewerMetrics, error) {
	engine, err := observability.NewEngineCollector(reg)
	if err != nil {
		return nil, err
	}
	clients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "handover_viewer_clients",
		Help: "Connected websocket clients",
	})
	if err := reg.Register(clients); err != nil {
		return nil, err
	}
	return &viewerMetrics{engine: engine, clients: clients}, nil
}

// updatePrometheusMetrics publishes the latest engine snapshot. With several
// clients connected the gauges follow whichever run stepped last.
func (v *viewerMetrics) updatePrometheusMetrics(metrics *correlator.Metrics) {
	if v == nil {
		return
	}
	v.engine.Update(metrics)
}

func (v *viewerMetrics) clientConnected() {
	if v != nil {
		v.clients.Inc()
	}
}

func (v *viewerMetrics) clientDisconnected() {
	if v != nil {
		v.clients.Dec()
	}
}
