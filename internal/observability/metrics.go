package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Subsystem: "sessions",
		Name:      "created_total",
		Help:      "Sessions created, by activity key.",
	}, []string{"activity_key"})
	sessionsEnded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Subsystem: "sessions",
		Name:      "ended_total",
		Help:      "Sessions reaching a terminal state, by outcome.",
	}, []string{"outcome"})
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Sessions currently in lobby or running state.",
	})
	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Subsystem: "rounds",
		Name:      "submissions_total",
		Help:      "Accepted submissions, by activity key.",
	}, []string{"activity_key"})
	roundsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Subsystem: "rounds",
		Name:      "finalized_total",
		Help:      "Rounds finalized, by trigger (deadline or all-submitted).",
	}, []string{"reason"})
	telemetryDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Subsystem: "telemetry",
		Name:      "dropped_total",
		Help:      "Telemetry events dropped, by cause.",
	}, []string{"cause"})
	pasteAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Subsystem: "telemetry",
		Name:      "paste_attempts_total",
		Help:      "Blocked clipboard paste attempts reported by clients.",
	})
)

func init() {
	prometheus.MustRegister(
		sessionsCreated,
		sessionsEnded,
		sessionsActive,
		submissions,
		roundsFinalized,
		telemetryDropped,
		pasteAttempts,
	)
}

// RecordSessionCreated counts a new session and bumps the active gauge.
func RecordSessionCreated(activityKey string) {
	sessionsCreated.WithLabelValues(activityKey).Inc()
	sessionsActive.Inc()
}

// RecordSessionEnded counts a terminal transition and drops the active gauge.
func RecordSessionEnded(outcome string) {
	sessionsEnded.WithLabelValues(outcome).Inc()
	sessionsActive.Dec()
}

// RecordSubmission counts an accepted submission.
func RecordSubmission(activityKey string) {
	submissions.WithLabelValues(activityKey).Inc()
}

// RecordRoundFinalized counts a round finalize by trigger path.
func RecordRoundFinalized(reason string) {
	roundsFinalized.WithLabelValues(reason).Inc()
}

// RecordTelemetryDropped counts a dropped telemetry event.
func RecordTelemetryDropped(cause string) {
	telemetryDropped.WithLabelValues(cause).Inc()
}

// RecordPasteAttempt counts a blocked paste report.
func RecordPasteAttempt() {
	pasteAttempts.Inc()
}
