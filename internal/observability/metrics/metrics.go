// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livesync"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Realtime voice-link metrics
	RealtimeConnects          prometheus.Counter
	RealtimeDisconnects       prometheus.Counter
	RealtimeReconnectAttempts prometheus.Counter
	RealtimeReconnectFailures prometheus.Counter
	RealtimeMessagesReceived  *prometheus.CounterVec

	// Audio metrics
	AudioFramesSent    prometheus.Counter
	AudioBytesSent     prometheus.Counter
	AudioBytesReceived prometheus.Counter

	// Sync engine metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	StatusChanges      prometheus.Counter
	PushEvents         *prometheus.CounterVec
	PollTicks          prometheus.Counter
	PollErrors         prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Realtime voice-link metrics
		RealtimeConnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_connects_total",
			Help:      "Total number of realtime socket connections established",
		}),
		RealtimeDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_disconnects_total",
			Help:      "Total number of realtime socket disconnections",
		}),
		RealtimeReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_reconnect_attempts_total",
			Help:      "Total number of realtime reconnection attempts scheduled",
		}),
		RealtimeReconnectFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_reconnect_failures_total",
			Help:      "Total number of times the reconnect attempt cap was exhausted",
		}),
		RealtimeMessagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_messages_received_total",
			Help:      "Total number of realtime protocol messages received",
		}, []string{"type"}),

		// Audio metrics
		AudioFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_sent_total",
			Help:      "Total audio append messages sent",
		}),
		AudioBytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Total PCM bytes sent to the realtime socket",
		}),
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total PCM bytes received from the realtime socket",
		}),

		// Sync engine metrics
		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of interim transcript entries merged",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcript entries merged",
		}),
		StatusChanges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_status_changes_total",
			Help:      "Total number of bot status transitions observed",
		}),
		PushEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_events_total",
			Help:      "Total number of push channel events received",
		}, []string{"event"}),
		PollTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Total number of polling fallback fetches",
		}),
		PollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Total number of failed polling fetches",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordConnect records a realtime socket opening.
func (m *Metrics) RecordConnect() {
	m.RealtimeConnects.Inc()
}

// RecordDisconnect records a realtime socket closing.
func (m *Metrics) RecordDisconnect() {
	m.RealtimeDisconnects.Inc()
}

// RecordReconnectAttempt records a scheduled reconnection attempt.
func (m *Metrics) RecordReconnectAttempt() {
	m.RealtimeReconnectAttempts.Inc()
}

// RecordReconnectFailure records the attempt cap being exhausted.
func (m *Metrics) RecordReconnectFailure() {
	m.RealtimeReconnectFailures.Inc()
}

// RecordMessageReceived records an inbound realtime protocol message.
func (m *Metrics) RecordMessageReceived(msgType string) {
	m.RealtimeMessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordAudioSent records an audio append with its PCM payload size.
func (m *Metrics) RecordAudioSent(bytes int) {
	m.AudioFramesSent.Inc()
	m.AudioBytesSent.Add(float64(bytes))
}

// RecordAudioReceived records PCM bytes received for playback.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
}

// RecordEntryMerged records a transcript entry merged into the local view.
func (m *Metrics) RecordEntryMerged(isFinal bool) {
	if isFinal {
		m.TranscriptsFinal.Inc()
	} else {
		m.TranscriptsPartial.Inc()
	}
}

// RecordStatusChange records a bot status transition.
func (m *Metrics) RecordStatusChange() {
	m.StatusChanges.Inc()
}

// RecordPushEvent records a push channel event by name.
func (m *Metrics) RecordPushEvent(event string) {
	m.PushEvents.WithLabelValues(event).Inc()
}

// RecordPollTick records a polling fetch and whether it failed.
func (m *Metrics) RecordPollTick(err error) {
	m.PollTicks.Inc()
	if err != nil {
		m.PollErrors.Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
