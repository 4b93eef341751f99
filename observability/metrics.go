// Package observability is the ambient metrics/logging/tracing surface
// shared across the provider-agent's components, grounded on the
// teacher's own observability package (sync.Once-guarded singleton
// registries, prometheus.CounterVec/HistogramVec/GaugeVec collectors).
package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type negotiatorMetrics struct {
	decisions   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rateLimited prometheus.Counter
}

type paymentSyncMetrics struct {
	attempts     *prometheus.CounterVec
	retries      *prometheus.CounterVec
	iterationDur prometheus.Histogram
	pendingNotif prometheus.Gauge
}

type inetMetrics struct {
	binds       *prometheus.CounterVec
	unbinds     *prometheus.CounterVec
	flows       prometheus.Gauge
	rateLimited *prometheus.CounterVec
}

var (
	negotiatorOnce     sync.Once
	negotiatorRegistry *negotiatorMetrics

	paymentSyncOnce     sync.Once
	paymentSyncRegistry *paymentSyncMetrics

	inetOnce     sync.Once
	inetRegistry *inetMetrics
)

// Negotiator returns the lazily-initialized negotiator pipeline metrics
// registry.
func Negotiator() *negotiatorMetrics {
	negotiatorOnce.Do(func() {
		negotiatorRegistry = &negotiatorMetrics{
			decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "provideragent",
				Subsystem: "negotiator",
				Name:      "decisions_total",
				Help:      "Count of pipeline decisions segmented by component and decision kind.",
			}, []string{"component", "decision"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "provideragent",
				Subsystem: "negotiator",
				Name:      "pipeline_duration_seconds",
				Help:      "Latency distribution for a full pipeline run.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"outcome"}),
			rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "provideragent",
				Subsystem: "negotiator",
				Name:      "rate_limited_total",
				Help:      "Count of pipeline runs rejected by the intake rate limiter.",
			}),
		}
		prometheus.MustRegister(negotiatorRegistry.decisions, negotiatorRegistry.duration, negotiatorRegistry.rateLimited)
	})
	return negotiatorRegistry
}

// RecordRateLimited increments the intake rate-limit rejection counter.
func (m *negotiatorMetrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// RecordDecision increments the decision counter for component/kind.
func (m *negotiatorMetrics) RecordDecision(component, kind string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(labelOrUnknown(component), labelOrUnknown(kind)).Inc()
}

// ObservePipeline records how long a full pipeline run took.
func (m *negotiatorMetrics) ObservePipeline(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(labelOrUnknown(outcome)).Observe(d.Seconds())
}

// PaymentSync returns the lazily-initialized payment sync engine
// metrics registry.
func PaymentSync() *paymentSyncMetrics {
	paymentSyncOnce.Do(func() {
		paymentSyncRegistry = &paymentSyncMetrics{
			attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "provideragent",
				Subsystem: "payment_sync",
				Name:      "replication_attempts_total",
				Help:      "Count of peer replication attempts segmented by outcome.",
			}, []string{"outcome"}),
			retries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "provideragent",
				Subsystem: "payment_sync",
				Name:      "retries_total",
				Help:      "Count of backoff retries segmented by peer.",
			}, []string{"peer"}),
			iterationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "provideragent",
				Subsystem: "payment_sync",
				Name:      "iteration_duration_seconds",
				Help:      "Latency distribution for one sync-notif scan iteration.",
				Buckets:   prometheus.DefBuckets,
			}),
			pendingNotif: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "provideragent",
				Subsystem: "payment_sync",
				Name:      "pending_notifs",
				Help:      "Count of sync notifs currently pending replication.",
			}),
		}
		prometheus.MustRegister(
			paymentSyncRegistry.attempts,
			paymentSyncRegistry.retries,
			paymentSyncRegistry.iterationDur,
			paymentSyncRegistry.pendingNotif,
		)
	})
	return paymentSyncRegistry
}

// RecordAttempt increments the replication attempt counter for outcome
// ("delivered", "failed", "fallback").
func (m *paymentSyncMetrics) RecordAttempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(labelOrUnknown(outcome)).Inc()
}

// RecordRetry increments the retry counter for peerID.
func (m *paymentSyncMetrics) RecordRetry(peerID string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(labelOrUnknown(peerID)).Inc()
}

// ObserveIteration records how long one scan iteration took.
func (m *paymentSyncMetrics) ObserveIteration(d time.Duration) {
	if m == nil {
		return
	}
	m.iterationDur.Observe(d.Seconds())
}

// SetPendingNotifs updates the pending-notif gauge.
func (m *paymentSyncMetrics) SetPendingNotifs(n int) {
	if m == nil {
		return
	}
	m.pendingNotif.Set(float64(n))
}

// Inet returns the lazily-initialized transport proxy metrics registry.
func Inet() *inetMetrics {
	inetOnce.Do(func() {
		inetRegistry = &inetMetrics{
			binds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "provideragent",
				Subsystem: "inet",
				Name:      "binds_total",
				Help:      "Count of flow binds segmented by transport protocol.",
			}, []string{"proto"}),
			unbinds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "provideragent",
				Subsystem: "inet",
				Name:      "unbinds_total",
				Help:      "Count of flow unbinds segmented by transport protocol.",
			}, []string{"proto"}),
			flows: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "provideragent",
				Subsystem: "inet",
				Name:      "active_flows",
				Help:      "Count of currently bound flows.",
			}),
			rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "provideragent",
				Subsystem: "inet",
				Name:      "bind_rate_limited_total",
				Help:      "Count of binds rejected by the bind-storm rate limiter.",
			}, []string{"proto"}),
		}
		prometheus.MustRegister(inetRegistry.binds, inetRegistry.unbinds, inetRegistry.flows, inetRegistry.rateLimited)
	})
	return inetRegistry
}

// RecordBind increments the bind counter for proto.
func (m *inetMetrics) RecordBind(proto string) {
	if m == nil {
		return
	}
	m.binds.WithLabelValues(labelOrUnknown(proto)).Inc()
}

// RecordUnbind increments the unbind counter for proto.
func (m *inetMetrics) RecordUnbind(proto string) {
	if m == nil {
		return
	}
	m.unbinds.WithLabelValues(labelOrUnknown(proto)).Inc()
}

// SetActiveFlows updates the active-flow gauge.
func (m *inetMetrics) SetActiveFlows(n int) {
	if m == nil {
		return
	}
	m.flows.Set(float64(n))
}

// RecordRateLimited increments the bind rate-limit rejection counter for proto.
func (m *inetMetrics) RecordRateLimited(proto string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(labelOrUnknown(proto)).Inc()
}

func labelOrUnknown(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
