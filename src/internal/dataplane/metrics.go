package dataplane

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the daemon's Prometheus series on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	mapEntries        prometheus.Gauge
	mapMaxEntries     prometheus.Gauge
	scrapeErrorsTotal prometheus.Counter
	pollDuration      prometheus.Histogram
	attached          prometheus.Gauge
}

// NewMetrics creates and registers all series.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mapEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "patu_redirect_map_entries",
				Help: "Sockets currently held in the redirect map.",
			},
		),
		mapMaxEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "patu_redirect_map_max_entries",
				Help: "Configured capacity of the redirect map.",
			},
		),
		scrapeErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "patu_redirect_map_scrape_errors_total",
				Help: "Failed walks of the redirect map.",
			},
		),
		pollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "patu_redirect_map_read_duration_seconds",
				Help:    "Time in seconds spent walking the redirect map.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		attached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "patu_dataplane_attached",
				Help: "1 when both programs are attached.",
			},
		),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	m.registry.MustRegister(
		m.mapEntries,
		m.mapMaxEntries,
		m.scrapeErrorsTotal,
		m.pollDuration,
		m.attached,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// SetMaxEntries records the configured map capacity.
func (m *Metrics) SetMaxEntries(n uint32) {
	m.mapMaxEntries.Set(float64(n))
}

// SetAttached records whether the programs are attached.
func (m *Metrics) SetAttached(ok bool) {
	if ok {
		m.attached.Set(1)
		return
	}
	m.attached.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
