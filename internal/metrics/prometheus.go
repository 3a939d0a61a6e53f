package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricEventsEmittedTotal  = "clickstream_events_emitted_total"
	MetricStreamsStartedTotal = "clickstream_streams_started_total"
	MetricRecordsSkippedTotal = "clickstream_records_skipped_total"
	MetricActiveStreams       = "clickstream_active_streams"
	MetricCachedUsers         = "clickstream_cached_users"
	MetricCachedProducts      = "clickstream_cached_products"
	MetricOpenSessions        = "clickstream_open_sessions"
	MetricUptimeSeconds       = "clickstream_uptime_seconds"
)

// Exporter exposes the aggregator's counters on a private Prometheus
// registry, so the exported metric set never collides with the default
// registry's process collectors.
type Exporter struct {
	registry *prometheus.Registry
}

// NewExporter creates an exporter over the given aggregator. The exported
// metrics read the aggregator's counters directly at scrape time; there is
// no double bookkeeping.
func NewExporter(agg *Aggregator) *Exporter {
	registry := prometheus.NewRegistry()

	registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: MetricEventsEmittedTotal,
			Help: "Total number of events emitted across all streams.",
		}, func() float64 { return float64(agg.eventsEmitted.Load()) }),

		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: MetricStreamsStartedTotal,
			Help: "Total number of streams ever started.",
		}, func() float64 { return float64(agg.streamsStarted.Load()) }),

		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: MetricRecordsSkippedTotal,
			Help: "Total number of records skipped due to serialization failures.",
		}, func() float64 { return float64(agg.recordsSkipped.Load()) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: MetricActiveStreams,
			Help: "Number of currently active streams.",
		}, func() float64 { return float64(agg.activeStreams.Load()) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: MetricCachedUsers,
			Help: "Current user reference cache occupancy.",
		}, func() float64 { return float64(agg.cachedUsers.Load()) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: MetricCachedProducts,
			Help: "Current product reference cache occupancy.",
		}, func() float64 { return float64(agg.cachedProducts.Load()) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: MetricOpenSessions,
			Help: "Number of currently open sessions.",
		}, func() float64 { return float64(agg.sessionsOpen.Load()) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: MetricUptimeSeconds,
			Help: "Seconds since the engine started.",
		}, func() float64 { return agg.Uptime().Seconds() }),
	)

	return &Exporter{registry: registry}
}

// Registry returns the private registry, for test gathering.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
