package providers

import (
	"anonbot/internal/models"
	"anonbot/internal/structures"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	IncPersistenceFailures()
	IncVerdict(verdict string)
	ObserveState(stats func() models.Stats)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	persistenceFailures prometheus.Counter
	verdicts            *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncPersistenceFailures() {
	m.persistenceFailures.Inc()
}

func (m *MetricsProvider) IncVerdict(verdict string) {
	m.verdicts.WithLabelValues(verdict).Inc()
}

// ObserveState exposes registry counters as gauges read at scrape time.
func (m *MetricsProvider) ObserveState(stats func() models.Stats) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "anonbot_users_total",
		Help: "Number of known users",
	}, func() float64 {
		return float64(stats().TotalUsers)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "anonbot_blocked_users",
		Help: "Number of blocked users",
	}, func() float64 {
		return float64(stats().BlockedUsers)
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "anonbot_user_messages_total",
		Help: "Messages accepted from users since the first snapshot",
	}, func() float64 {
		return float64(stats().TotalMessages)
	})
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anonbot_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "anonbot_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "anonbot_cache_hits_total",
			Help: "Total number of reply route cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "anonbot_cache_misses_total",
			Help: "Total number of reply route cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "anonbot_persistence_duration_seconds",
			Help:    "Duration of snapshot writes in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		persistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "anonbot_persistence_failures_total",
			Help: "Snapshot writes that failed and were discarded",
		}),

		verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anonbot_messages_total",
			Help: "Inbound user messages by admission verdict",
		}, []string{"verdict"}),
	}
}

// noopMetrics is used when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncPersistenceFailures()                          {}
func (n *noopMetrics) IncVerdict(_ string)                              {}
func (n *noopMetrics) ObserveState(_ func() models.Stats)               {}
