// Package metrics exposes the server's Prometheus collectors (SPEC_FULL.md
// [METRICS]), grounded on the teacher's metrics package: a single registry,
// collectors registered by whoever owns them, and event-bus subscriptions
// that keep counters in sync with what the resolver chain actually did.
package metrics

import (
	"net/http"
	"time"

	"authdns/evt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//nolint:gochecknoglobals
var reg = prometheus.NewRegistry()

// RegisterMetric registers a prometheus collector on the server's registry.
func RegisterMetric(c prometheus.Collector) {
	_ = reg.Register(c)
}

// Handler serves the registry in the Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// StartCollection registers the Go/process collectors and the event
// listeners that back the counters below. Call once at server startup.
func StartCollection() {
	_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	_ = reg.Register(collectors.NewGoCollector())

	RegisterEventListeners()
}

//nolint:gochecknoglobals
var (
	cacheHits     = prometheus.NewCounter(prometheus.CounterOpts{Name: "authdns_cache_hit_total", Help: "Response cache hits"})
	cacheMisses   = prometheus.NewCounter(prometheus.CounterOpts{Name: "authdns_cache_miss_total", Help: "Response cache misses"})
	cacheEvicted  = prometheus.NewCounter(prometheus.CounterOpts{Name: "authdns_cache_evicted_total", Help: "Response cache evictions"})
	forwardsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authdns_forward_total", Help: "Queries forwarded to an upstream resolver",
	}, []string{"upstream"})
	signedTotal     = prometheus.NewCounter(prometheus.CounterOpts{Name: "authdns_dnssec_signed_total", Help: "RRsets signed"})
	signFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "authdns_dnssec_sign_failed_total", Help: "RRset signing failures"})
	queryDuration   = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authdns_query_duration_ms",
		Help:    "Query handling duration in milliseconds, by resolver stage that produced the answer",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250, 500, 1000},
	}, []string{"response_type"})
)

// RegisterEventListeners wires the event bus (SPEC_FULL.md [EVT]) to the
// counters above, decoupling the resolver/cache packages from Prometheus
// the way the teacher decouples its caching/blocking packages from metrics.
func RegisterEventListeners() {
	RegisterMetric(cacheHits)
	RegisterMetric(cacheMisses)
	RegisterMetric(cacheEvicted)
	RegisterMetric(forwardsTotal)
	RegisterMetric(signedTotal)
	RegisterMetric(signFailedTotal)
	RegisterMetric(queryDuration)

	_ = evt.Bus().Subscribe(evt.CacheHit, func(string) { cacheHits.Inc() })
	_ = evt.Bus().Subscribe(evt.CacheMiss, func(string) { cacheMisses.Inc() })
	_ = evt.Bus().Subscribe(evt.CacheEvicted, func(string) { cacheEvicted.Inc() })
	_ = evt.Bus().Subscribe(evt.ResolveForwarded, func(upstream string) {
		forwardsTotal.WithLabelValues(upstream).Inc()
	})
	_ = evt.Bus().Subscribe(evt.DnssecSigned, func(string) { signedTotal.Inc() })
	_ = evt.Bus().Subscribe(evt.DnssecSignFailed, func(string) { signFailedTotal.Inc() })
}

// ObserveQueryDuration records how long a query took to answer, labeled by
// the resolver stage responsible for the response (cache hit, zone answer,
// forwarded, etc).
func ObserveQueryDuration(responseType string, started time.Time) {
	queryDuration.WithLabelValues(responseType).Observe(float64(time.Since(started).Milliseconds()))
}
