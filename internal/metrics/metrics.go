// Package metrics collects and exposes Prometheus metrics for the auth core.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records authentication flow metrics.
type Collector struct {
	signInTotal       *prometheus.CounterVec
	signInConflicts   *prometheus.CounterVec
	normalizeFailures *prometheus.CounterVec
	blueskyExchange   *prometheus.CounterVec
	exchangeLatency   prometheus.Histogram
	sessionsIssued    prometheus.Counter
	logoutsTotal      prometheus.Counter
}

// NewCollector builds a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signInTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hqx_signin_total",
			Help: "Sign-in events by provider and resolution outcome.",
		}, []string{"provider", "outcome"}),
		signInConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hqx_signin_conflicts_total",
			Help: "Sign-ins rejected because the account belongs to another user.",
		}, []string{"provider"}),
		normalizeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hqx_profile_normalize_failures_total",
			Help: "Profile payloads rejected by the normalizer.",
		}, []string{"provider", "reason"}),
		blueskyExchange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hqx_bluesky_exchange_total",
			Help: "Bluesky credential exchanges by HTTP-equivalent result.",
		}, []string{"result"}),
		exchangeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hqx_bluesky_exchange_latency_seconds",
			Help:    "Latency of the bluesky credential exchange.",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hqx_sessions_issued_total",
			Help: "Session tokens issued.",
		}),
		logoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hqx_logouts_total",
			Help: "Completed logouts.",
		}),
	}

	reg.MustRegister(
		c.signInTotal,
		c.signInConflicts,
		c.normalizeFailures,
		c.blueskyExchange,
		c.exchangeLatency,
		c.sessionsIssued,
		c.logoutsTotal,
	)
	return c
}

func (c *Collector) RecordSignIn(provider, outcome string) {
	c.signInTotal.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) RecordConflict(provider string) {
	c.signInConflicts.WithLabelValues(provider).Inc()
}

func (c *Collector) RecordNormalizeFailure(provider, reason string) {
	c.normalizeFailures.WithLabelValues(provider, reason).Inc()
}

func (c *Collector) RecordBlueskyExchange(statusCode int, duration time.Duration) {
	c.blueskyExchange.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.exchangeLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordSessionIssued() {
	c.sessionsIssued.Inc()
}

func (c *Collector) RecordLogout() {
	c.logoutsTotal.Inc()
}

// Handler returns the /metrics endpoint handler for the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
