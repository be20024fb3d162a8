package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
// Every method is safe on a nil receiver.
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	staleServed       *prometheus.CounterVec
	remoteDuration    *prometheus.HistogramVec
	remoteErrors      *prometheus.CounterVec
	limiterDenied     *prometheus.CounterVec
	emergency         prometheus.Gauge
	sweepOutcomes     *prometheus.CounterVec
	queueOutcomes     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataset_cache_hits_total",
			Help: "Dataset cache reads answered by a fresh entry.",
		}, []string{"dataset"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataset_cache_misses_total",
			Help: "Dataset cache reads that found no fresh entry.",
		}, []string{"dataset"}),
		staleServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataset_stale_served_total",
			Help: "Reads answered from an expired cache entry.",
		}, []string{"dataset"}),
		remoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sheet_remote_duration_seconds",
			Help:    "Histogram of remote spreadsheet call durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		remoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheet_remote_errors_total",
			Help: "Remote spreadsheet call failures by class.",
		}, []string{"op", "class"}),
		limiterDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "call_budget_denied_total",
			Help: "Acquisitions refused by the call budget limiter.",
		}, []string{"reason"}),
		emergency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emergency_mode",
			Help: "1 while emergency mode widens every cache TTL.",
		}),
		sweepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auto_checkout_sessions_total",
			Help: "Open sessions seen by the missed-checkout sweeper by outcome.",
		}, []string{"outcome"}),
		queueOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_queue_messages_total",
			Help: "Queued notifications handled by the relay worker by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.cacheHits,
		m.cacheMisses,
		m.staleServed,
		m.remoteDuration,
		m.remoteErrors,
		m.limiterDenied,
		m.emergency,
		m.sweepOutcomes,
		m.queueOutcomes,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit(key string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(key).Inc()
}

func (m *Metrics) CacheMiss(key string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(key).Inc()
}

func (m *Metrics) StaleServed(dataset string) {
	if m == nil {
		return
	}
	m.staleServed.WithLabelValues(dataset).Inc()
}

// RemoteCall records one call to the spreadsheet backend. class is empty on
// success.
func (m *Metrics) RemoteCall(op string, d time.Duration, class string) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(op).Observe(d.Seconds())
	if class != "" {
		m.remoteErrors.WithLabelValues(op, class).Inc()
	}
}

func (m *Metrics) LimiterDenied(reason string) {
	if m == nil {
		return
	}
	m.limiterDenied.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetEmergency(on bool) {
	if m == nil {
		return
	}
	if on {
		m.emergency.Set(1)
		return
	}
	m.emergency.Set(0)
}

func (m *Metrics) SweepOutcome(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.sweepOutcomes.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) MessageOutcome(outcome string) {
	if m == nil {
		return
	}
	m.queueOutcomes.WithLabelValues(outcome).Inc()
}
