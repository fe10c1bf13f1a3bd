// Package metrics records live session activity as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vutelimu"

var (
	// sessionsActive is a gauge of currently open sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently open live sessions",
		},
	)

	// sessionDuration is a histogram of session lifetimes.
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of live session duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// sessionFailures counts sessions aborted by media or connection errors.
	sessionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_failures_total",
			Help:      "Total number of failed live sessions",
		},
		[]string{"reason"},
	)

	// framesSent counts captured frames written to the connection.
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of media frames sent",
		},
		[]string{"kind"}, // kind: audio, video
	)

	// audioChunks counts model audio chunks by outcome.
	audioChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Total number of model audio chunks",
		},
		[]string{"status"}, // status: scheduled, dropped
	)

	// toolCalls counts tool calls by tool and outcome.
	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls handled",
		},
		[]string{"tool", "status"},
	)

	// scores counts scored attempts.
	scores = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_total",
			Help:      "Total number of scored attempts",
		},
		[]string{"correct"},
	)
)

var allMetrics = []prometheus.Collector{
	sessionsActive,
	sessionDuration,
	sessionFailures,
	framesSent,
	audioChunks,
	toolCalls,
	scores,
}

// RecordSessionOpen increments the active session gauge.
func RecordSessionOpen() {
	sessionsActive.Inc()
}

// RecordSessionClose decrements the active gauge and observes the duration.
func RecordSessionClose(durationSeconds float64) {
	sessionsActive.Dec()
	sessionDuration.Observe(durationSeconds)
}

// RecordSessionFailure counts a failed session.
func RecordSessionFailure(reason string) {
	sessionFailures.WithLabelValues(reason).Inc()
}

// RecordFrameSent counts a sent frame.
func RecordFrameSent(kind string) {
	framesSent.WithLabelValues(kind).Inc()
}

// RecordAudioChunk counts a model audio chunk.
func RecordAudioChunk(status string) {
	audioChunks.WithLabelValues(status).Inc()
}

// RecordToolCall counts a handled tool call.
func RecordToolCall(tool, status string) {
	toolCalls.WithLabelValues(tool, status).Inc()
}

// RecordScore counts a scored attempt.
func RecordScore(correct bool) {
	scores.WithLabelValues(strconv.FormatBool(correct)).Inc()
}
