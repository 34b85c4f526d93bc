package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolver outcome labels.
const (
	SourceOverride = "override"
	SourceNone     = "none"
	SourceError    = "error"
)

// RecommendationMetrics records storefront traffic handled by the app proxy.
type RecommendationMetrics struct {
	events          *prometheus.CounterVec
	quotaRejections *prometheus.CounterVec
	resolves        *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
}

// NewRecommendationMetrics registers the storefront metrics on reg. A nil
// registerer yields a no-op recorder.
func NewRecommendationMetrics(reg prometheus.Registerer) *RecommendationMetrics {
	if reg == nil {
		return &RecommendationMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyrecs_tracked_events_total",
		Help: "Storefront analytics events accepted, by event type.",
	}, []string{"event_type"})
	quota := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyrecs_quota_rejections_total",
		Help: "Tracking requests rejected because the shop plan quota was exhausted.",
	}, []string{"plan"})
	resolves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyrecs_resolver_outcomes_total",
		Help: "Recommendation lookups by outcome source.",
	}, []string{"source"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easyrecs_resolver_duration_seconds",
		Help:    "Latency of recommendation lookups in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	reg.MustRegister(events, quota, resolves, duration)
	return &RecommendationMetrics{
		events:          events,
		quotaRejections: quota,
		resolves:        resolves,
		resolveDuration: duration,
	}
}

// IncTrackedEvent counts one accepted analytics event.
func (m *RecommendationMetrics) IncTrackedEvent(eventType string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncQuotaRejection counts one tracking request refused for plan.
func (m *RecommendationMetrics) IncQuotaRejection(plan string) {
	if m == nil || m.quotaRejections == nil {
		return
	}
	m.quotaRejections.WithLabelValues(normalizeLabel(plan)).Inc()
}

// ObserveResolve records a lookup outcome and its latency.
func (m *RecommendationMetrics) ObserveResolve(source string, took time.Duration) {
	if m == nil || m.resolves == nil {
		return
	}
	label := normalizeLabel(source)
	m.resolves.WithLabelValues(label).Inc()
	m.resolveDuration.WithLabelValues(label).Observe(took.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
