// Package metrics exposes store activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gigledger/internal/core"
	"gigledger/internal/store"
)

const namespace = "gigledger"

// Metrics owns its registry so independent instances do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	mutations *prometheus.CounterVec
	persists  *prometheus.CounterVec
	premium   prometheus.Gauge
	requests  *prometheus.HistogramVec
}

var _ store.Recorder = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Record store mutations by collection, operation and outcome.",
			},
			[]string{"collection", "op", "outcome"},
		),
		persists: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "snapshot_writes_total",
				Help:      "Snapshot writes to the local cache.",
			},
			[]string{"success"},
		),
		premium: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "premium",
				Help:      "1 when the current user holds the premium entitlement.",
			},
		),
		requests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency of requests served by the daemon.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
	m.Registry.MustRegister(
		m.mutations,
		m.persists,
		m.premium,
		m.requests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) RecordMutation(c core.Collection, op string, outcome store.Outcome) {
	m.mutations.WithLabelValues(string(c), op, string(outcome)).Inc()
}

func (m *Metrics) RecordPersist(err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	m.persists.WithLabelValues(success).Inc()
}

// PremiumGauge wraps a premium setter so that every change is also
// reflected in the gauge.
func (m *Metrics) PremiumGauge(next interface{ SetPremium(bool) }) interface{ SetPremium(bool) } {
	return premiumSetter{m: m, next: next}
}

type premiumSetter struct {
	m    *Metrics
	next interface{ SetPremium(bool) }
}

func (p premiumSetter) SetPremium(premium bool) {
	if premium {
		p.m.premium.Set(1)
	} else {
		p.m.premium.Set(0)
	}
	p.next.SetPremium(premium)
}

// ObserveRequest records one served HTTP request. route must come from a
// fixed set such as router patterns.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
