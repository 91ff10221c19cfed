// Package metrics holds the Prometheus collectors for a verification run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scraper call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomePanic   = "panic"
)

// Metrics bundles the collectors on a dedicated registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry       *prometheus.Registry
	LeadsTotal     prometheus.Counter
	ContactsTotal  prometheus.Counter
	ScraperCalls   *prometheus.CounterVec
	ScraperLatency *prometheus.HistogramVec
	CacheHits      *prometheus.CounterVec
	Retries        *prometheus.CounterVec
	LeadDuration   prometheus.Histogram
}

// New constructs and registers every collector.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	leads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadverifier_leads_total",
		Help: "Leads fully processed by the orchestrator.",
	})
	contacts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadverifier_contacts_total",
		Help: "Deduplicated contacts produced across all leads.",
	})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadverifier_scraper_calls_total",
		Help: "Scraper invocations by source and outcome.",
	}, []string{"source", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leadverifier_scraper_duration_seconds",
		Help:    "Wall time of one scraper invocation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadverifier_cache_hits_total",
		Help: "Scraper results served from the result cache.",
	}, []string{"source"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leadverifier_scraper_retries_total",
		Help: "Retry attempts scheduled per source.",
	}, []string{"source"})
	leadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadverifier_lead_duration_seconds",
		Help:    "Wall time to fan out and merge one lead.",
		Buckets: prometheus.DefBuckets,
	})

	registry.MustRegister(leads, contacts, calls, latency, hits, retries, leadDuration)

	return &Metrics{
		Registry:       registry,
		LeadsTotal:     leads,
		ContactsTotal:  contacts,
		ScraperCalls:   calls,
		ScraperLatency: latency,
		CacheHits:      hits,
		Retries:        retries,
		LeadDuration:   leadDuration,
	}
}

// ObserveScraper records one scraper call.
func (m *Metrics) ObserveScraper(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScraperCalls.WithLabelValues(source, outcome).Inc()
	m.ScraperLatency.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveLead records a merged lead and its contact count.
func (m *Metrics) ObserveLead(contacts int, d time.Duration) {
	if m == nil {
		return
	}
	m.LeadsTotal.Inc()
	m.ContactsTotal.Add(float64(contacts))
	m.LeadDuration.Observe(d.Seconds())
}

// IncCacheHit counts a cached result for source.
func (m *Metrics) IncCacheHit(source string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(source).Inc()
}

// IncRetry counts a scheduled retry for source.
func (m *Metrics) IncRetry(source string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(source).Inc()
}
