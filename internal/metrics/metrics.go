// Package metrics exposes Prometheus instrumentation for the HTTP
// server and the settlement engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	summariesComputed  prometheus.Counter
	summaryCacheHits   prometheus.Counter
	summaryCacheMisses prometheus.Counter
	settlementTxCount  prometheus.Histogram
	eventsPublished    *prometheus.CounterVec
	parseJobs          *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitperfect_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "splitperfect_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		summariesComputed: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitperfect_summaries_computed_total",
			Help: "Room summaries computed from scratch.",
		}),
		summaryCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitperfect_summary_cache_hits_total",
			Help: "Room summaries served from the cache.",
		}),
		summaryCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitperfect_summary_cache_misses_total",
			Help: "Room summary cache lookups that missed.",
		}),
		settlementTxCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "splitperfect_settlement_transactions",
			Help:    "Number of transfers per computed settlement plan.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitperfect_events_published_total",
			Help: "Events published to the message broker, by routing key.",
		}, []string{"routing_key"}),
		parseJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitperfect_parse_jobs_total",
			Help: "Receipt parse jobs processed by the worker, by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) SummaryComputed(transactions int) {
	m.summariesComputed.Inc()
	m.settlementTxCount.Observe(float64(transactions))
}

func (m *Metrics) SummaryCacheHit()  { m.summaryCacheHits.Inc() }
func (m *Metrics) SummaryCacheMiss() { m.summaryCacheMisses.Inc() }

func (m *Metrics) EventPublished(routingKey string) {
	m.eventsPublished.WithLabelValues(routingKey).Inc()
}

func (m *Metrics) ParseJob(outcome string) {
	m.parseJobs.WithLabelValues(outcome).Inc()
}
