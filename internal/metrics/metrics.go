package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "pixelforge"
	subsystem = "chat"
)

var (
	// ResolutionsTotal counts bot replies by the path that produced them.
	ResolutionsTotal *prometheus.CounterVec

	// RejectedTotal counts submissions refused before any transcript mutation.
	RejectedTotal *prometheus.CounterVec

	// RemoteLatency observes the remote round trip, successful or not.
	RemoteLatency *prometheus.HistogramVec

	ActiveSessions prometheus.Gauge

	// BreakerState reports the remote circuit breaker (0=closed, 0.5=half-open, 1=open).
	BreakerState *prometheus.GaugeVec
)

func init() {
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolutions_total",
			Help:      "Bot replies by resolution path and remote failure reason",
		},
		[]string{"path", "reason"},
	)

	RejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_total",
			Help:      "Submissions rejected before touching the transcript",
		},
		[]string{"reason"},
	)

	RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remote_latency_seconds",
			Help:      "Remote generative call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_sessions",
			Help:      "Live widget sessions held in memory",
		},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "breaker_state",
			Help:      "Remote circuit breaker state (0=closed, 0.5=half-open, 1=open)",
		},
		[]string{"provider"},
	)

	prometheus.MustRegister(ResolutionsTotal, RejectedTotal, RemoteLatency, ActiveSessions, BreakerState)
}

// RecordResolution records one bot reply. reason is empty for remote successes.
func RecordResolution(path, reason string) {
	if reason == "" {
		reason = "none"
	}
	ResolutionsTotal.WithLabelValues(path, reason).Inc()
}

// RecordRejected records a refused submission.
func RecordRejected(reason string) {
	RejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveRemoteLatency records a remote call duration.
func ObserveRemoteLatency(provider string, durationSec float64) {
	if provider == "" {
		provider = "unknown"
	}
	RemoteLatency.WithLabelValues(provider).Observe(durationSec)
}

// SetActiveSessions publishes the session registry size.
func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}

// SetBreakerState publishes a breaker transition.
func SetBreakerState(provider, state string) {
	var val float64
	switch state {
	case "closed":
		val = 0
	case "half-open":
		val = 0.5
	case "open":
		val = 1
	}
	BreakerState.WithLabelValues(provider).Set(val)
}
