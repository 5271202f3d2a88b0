// Package metrics exposes Prometheus counters for the client core.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Profile load outcomes.
const (
	ProfileLoaded    = "loaded"
	ProfileMissing   = "missing"
	ProfileFailed    = "failed"
	ProfileSignedOut = "signed_out"
	ProfileStale     = "stale"
)

// Recorder is what the store, guard and bridge report to.
type Recorder interface {
	RecordAuthOperation(operation, code string)
	RecordProfileLoad(outcome string)
	RecordGuardRedirect(route string)
	RecordHTTPRequest(route string, status int, duration time.Duration)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	authOps         *prometheus.CounterVec
	profileLoads    *prometheus.CounterVec
	guardRedirects  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onebills_auth_operations_total",
			Help: "Store auth operations by outcome code (ok on success).",
		}, []string{"operation", "code"}),
		profileLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onebills_profile_loads_total",
			Help: "Profile loads by outcome.",
		}, []string{"outcome"}),
		guardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onebills_guard_redirects_total",
			Help: "Navigation redirects issued by the guards, by target route.",
		}, []string{"route"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onebills_bridge_request_duration_seconds",
			Help:    "UI bridge request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
	reg.MustRegister(c.authOps, c.profileLoads, c.guardRedirects, c.requestDuration)
	return c
}

func (c *Collector) RecordAuthOperation(operation, code string) {
	if code == "" {
		code = "ok"
	}
	c.authOps.WithLabelValues(operation, code).Inc()
}

func (c *Collector) RecordProfileLoad(outcome string) {
	c.profileLoads.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordGuardRedirect(route string) {
	c.guardRedirects.WithLabelValues(route).Inc()
}

func (c *Collector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	c.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAuthOperation(string, string)           {}
func (Nop) RecordProfileLoad(string)                     {}
func (Nop) RecordGuardRedirect(string)                   {}
func (Nop) RecordHTTPRequest(string, int, time.Duration) {}

// Handler serves the gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
