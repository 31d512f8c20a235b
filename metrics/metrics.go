// Package metrics exposes the client's Prometheus instrumentation: relay
// publish outcomes, subscription event throughput, and request correlator
// latency/backlog.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics bundles the collectors registered for one process. Methods
// are nil-receiver safe so callers that never wire metrics in can still call
// them unconditionally.
type ClientMetrics struct {
	publishes       *prometheus.CounterVec
	subscriptions   *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	pendingRequests prometheus.Gauge
	relayDrops      *prometheus.CounterVec
}

var (
	clientMetricsOnce sync.Once
	clientRegistry    *ClientMetrics
)

// Client returns the lazily-initialised, process-wide client metrics
// registry.
func Client() *ClientMetrics {
	clientMetricsOnce.Do(func() {
		clientRegistry = &ClientMetrics{
			publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mostro_client",
				Subsystem: "relay",
				Name:      "publishes_total",
				Help:      "Total event publish attempts segmented by outcome.",
			}, []string{"outcome"}),
			subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mostro_client",
				Subsystem: "relay",
				Name:      "subscription_events_total",
				Help:      "Total events received over live subscriptions segmented by event kind.",
			}, []string{"kind"}),
			requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "mostro_client",
				Subsystem: "correlator",
				Name:      "request_duration_seconds",
				Help:      "Latency from begin_request to deliver or timeout, segmented by outcome.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"outcome"}),
			pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "mostro_client",
				Subsystem: "correlator",
				Name:      "pending_requests",
				Help:      "Count of outstanding Mode-1 requests awaiting a reply.",
			}),
			relayDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mostro_client",
				Subsystem: "relay",
				Name:      "dropped_events_total",
				Help:      "Count of subscription events dropped because a consumer's queue was saturated.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			clientRegistry.publishes,
			clientRegistry.subscriptions,
			clientRegistry.requestLatency,
			clientRegistry.pendingRequests,
			clientRegistry.relayDrops,
		)
	})
	return clientRegistry
}

// RecordPublish records the outcome of a Relay Gateway publish attempt.
func (m *ClientMetrics) RecordPublish(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.publishes.WithLabelValues(outcome).Inc()
}

// RecordSubscriptionEvent records receipt of one event on a live
// subscription, labeled by its Nostr numeric kind.
func (m *ClientMetrics) RecordSubscriptionEvent(kind int) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(kindLabel(kind)).Inc()
}

// RecordDrop records a dropped subscription event due to queue saturation.
func (m *ClientMetrics) RecordDrop(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.relayDrops.WithLabelValues(reason).Inc()
}

// RecordRequestOutcome records the lifetime of a Mode-1 correlator record
// from allocation to its terminal outcome (delivered, timeout or
// disconnected).
func (m *ClientMetrics) RecordRequestOutcome(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetPendingRequests updates the outstanding Mode-1 request gauge.
func (m *ClientMetrics) SetPendingRequests(n int) {
	if m == nil {
		return
	}
	m.pendingRequests.Set(float64(n))
}

func kindLabel(kind int) string {
	switch kind {
	case 4:
		return "dm-legacy"
	case 1059:
		return "gift-wrap"
	case 13:
		return "seal"
	case 38383:
		return "order-document"
	default:
		return "other"
	}
}
