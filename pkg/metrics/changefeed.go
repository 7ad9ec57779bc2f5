package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ChangefeedMetrics tracks hub fan-out and broker refetch behavior.
type ChangefeedMetrics struct {
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	refetches *prometheus.CounterVec
	coalesced *prometheus.CounterVec
}

// NewChangefeedMetrics registers the changefeed metrics on the provided registerer.
func NewChangefeedMetrics(reg prometheus.Registerer) *ChangefeedMetrics {
	if reg == nil {
		return &ChangefeedMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changefeed_events_published",
		Help: "Change events published to the hub, by table.",
	}, []string{"table"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changefeed_events_dropped",
		Help: "Change events dropped because a subscriber fell behind, by table.",
	}, []string{"table"})
	refetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changefeed_refetches",
		Help: "Debounced refetches executed by the broker, by registration key.",
	}, []string{"key"})
	coalesced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changefeed_events_coalesced",
		Help: "Events absorbed into an already pending refetch, by registration key.",
	}, []string{"key"})
	reg.MustRegister(published, dropped, refetches, coalesced)
	return &ChangefeedMetrics{
		published: published,
		dropped:   dropped,
		refetches: refetches,
		coalesced: coalesced,
	}
}

// IncPublished counts one event published for the table.
func (c *ChangefeedMetrics) IncPublished(table string) {
	if c == nil || c.published == nil {
		return
	}
	c.published.WithLabelValues(normalizeLabel(table)).Inc()
}

// IncDropped counts one event dropped for the table.
func (c *ChangefeedMetrics) IncDropped(table string) {
	if c == nil || c.dropped == nil {
		return
	}
	c.dropped.WithLabelValues(normalizeLabel(table)).Inc()
}

// IncRefetch counts one executed refetch for the registration key.
func (c *ChangefeedMetrics) IncRefetch(key string) {
	if c == nil || c.refetches == nil {
		return
	}
	c.refetches.WithLabelValues(normalizeLabel(key)).Inc()
}

// IncCoalesced counts one event absorbed by a pending refetch.
func (c *ChangefeedMetrics) IncCoalesced(key string) {
	if c == nil || c.coalesced == nil {
		return
	}
	c.coalesced.WithLabelValues(normalizeLabel(key)).Inc()
}
