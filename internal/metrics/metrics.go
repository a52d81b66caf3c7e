// Package metrics exposes the attendance counters scraped from /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the domain collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	SessionsRecorded       *prometheus.CounterVec
	AbsencesRecorded       prometheus.Counter
	VerificationRejections prometheus.Counter
	SyncFailures           prometheus.Counter
	SyncDuration           prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartattend",
			Name:      "sessions_recorded_total",
			Help:      "Confirmed attendance sessions written to the registry.",
		}, []string{"class"}),
		AbsencesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartattend",
			Name:      "absences_recorded_total",
			Help:      "Absence entries written to the registry.",
		}),
		VerificationRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartattend",
			Name:      "verification_rejections_total",
			Help:      "Presence toggles rejected because the student needs a billet.",
		}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smartattend",
			Name:      "sync_failures_total",
			Help:      "Session recordings that did not complete.",
		}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smartattend",
			Name:      "sync_duration_seconds",
			Help:      "Time spent recording a confirmed session.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.SessionsRecorded, m.AbsencesRecorded, m.VerificationRejections, m.SyncFailures, m.SyncDuration)
	}
	return m
}

// SessionRecorded counts a successful recording of classID with absent absentees.
func (m *Metrics) SessionRecorded(classID string, absent int, took time.Duration) {
	if m == nil {
		return
	}
	m.SessionsRecorded.WithLabelValues(classID).Inc()
	m.AbsencesRecorded.Add(float64(absent))
	m.SyncDuration.Observe(took.Seconds())
}

// SyncFailed counts a failed recording.
func (m *Metrics) SyncFailed(took time.Duration) {
	if m == nil {
		return
	}
	m.SyncFailures.Inc()
	m.SyncDuration.Observe(took.Seconds())
}

// VerificationRejected counts a blocked presence toggle.
func (m *Metrics) VerificationRejected() {
	if m == nil {
		return
	}
	m.VerificationRejections.Inc()
}
