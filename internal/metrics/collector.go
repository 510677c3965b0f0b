package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proxyscout"

// Source outcomes.
const (
	SourceSucceeded = "succeeded"
	SourceFailed    = "failed"
	SourceSkipped   = "skipped"
)

// Probe attempt outcomes.
const (
	ProbeSuccess   = "success"
	ProbeFailure   = "failure"
	ProbeMalformed = "malformed"
)

// Collector owns the pipeline metrics on a private registry. A nil Collector
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	sources       *prometheus.CounterVec
	discovered    prometheus.Counter
	probeAttempts *prometheus.CounterVec
	working       *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		sources: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_total",
			Help:      "Sources processed per cycle by outcome.",
		}, []string{"outcome"}),
		discovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_discovered_total",
			Help:      "Distinct candidates inserted into the cycle store.",
		}),
		probeAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_attempts_total",
			Help:      "Probe attempts by outcome.",
		}, []string{"outcome"}),
		working: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "working_proxies",
			Help:      "Working proxies found by the last cycle.",
		}, []string{"protocol"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a full discovery and verification cycle.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}),
	}
}

func (c *Collector) SourceProcessed(outcome string) {
	if c == nil {
		return
	}
	c.sources.WithLabelValues(outcome).Inc()
}

func (c *Collector) CandidatesDiscovered(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.discovered.Add(float64(n))
}

func (c *Collector) ProbeAttempt(outcome string) {
	if c == nil {
		return
	}
	c.probeAttempts.WithLabelValues(outcome).Inc()
}

// SetWorking replaces the per-protocol working gauge with counts.
func (c *Collector) SetWorking(counts map[string]int) {
	if c == nil {
		return
	}
	c.working.Reset()
	for protocol, n := range counts {
		c.working.WithLabelValues(protocol).Set(float64(n))
	}
}

func (c *Collector) ObserveCycle(d time.Duration) {
	if c == nil {
		return
	}
	c.cycleDuration.Observe(d.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
