// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_voice_speech"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Utterance metrics
	UtterancesTotal    *prometheus.CounterVec
	UtterancesEmpty    *prometheus.CounterVec
	UtterancesFailed   *prometheus.CounterVec
	UtteranceDuration  prometheus.Histogram
	GateRejections     *prometheus.CounterVec

	// ASR backend metrics
	ASRLatency      *prometheus.HistogramVec
	ASRErrors       *prometheus.CounterVec
	ASRRetries      *prometheus.CounterVec
	ModelSwapsTotal prometheus.Counter

	// Credential metrics
	TokenRefreshTotal  prometheus.Counter
	TokenRefreshErrors prometheus.Counter

	// Audio metrics
	AudioPacketsDecoded prometheus.Counter
	AudioPacketsCorrupt prometheus.Counter
	AudioFilesSaved     prometheus.Counter

	// Synthesis queue metrics
	SynthesisUnitsEnqueued *prometheus.CounterVec
	SynthesisQueueDepth    prometheus.Gauge

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
		UtterancesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of utterances submitted for transcription",
		}, []string{"provider"}),
		UtterancesEmpty: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_empty_total",
			Help:      "Total number of utterances that produced no speech",
		}, []string{"provider"}),
		UtterancesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_failed_total",
			Help:      "Total number of utterances that failed with an error",
		}, []string{"provider"}),
		UtteranceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "utterance_audio_seconds",
			Help:      "Duration of utterance audio in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		GateRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_rejections_total",
			Help:      "Total number of utterances rejected by a gate",
		}, []string{"gate"}),

		ASRLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asr_latency_seconds",
			Help:      "Speech-to-text processing latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
		ASRErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asr_errors_total",
			Help:      "Total number of ASR backend errors",
		}, []string{"provider", "error_type"}),
		ASRRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asr_retries_total",
			Help:      "Total number of ASR call retries",
		}, []string{"provider"}),
		ModelSwapsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_swaps_total",
			Help:      "Total number of local model hot swaps",
		}),

		TokenRefreshTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Total number of access token refreshes",
		}),
		TokenRefreshErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_errors_total",
			Help:      "Total number of failed access token refreshes",
		}),

		AudioPacketsDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_packets_decoded_total",
			Help:      "Total audio packets decoded to PCM",
		}),
		AudioPacketsCorrupt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_packets_corrupt_total",
			Help:      "Total audio packets skipped as corrupt",
		}),
		AudioFilesSaved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_files_saved_total",
			Help:      "Total intermediate audio files written to disk",
		}),

		SynthesisUnitsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_units_enqueued_total",
			Help:      "Total synthesis units enqueued",
		}, []string{"kind"}),
		SynthesisQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "synthesis_queue_depth",
			Help:      "Current number of synthesis units waiting for playback",
		}),

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

// RecordUtterance records an utterance submitted to a backend.
func (m *Metrics) RecordUtterance(provider string, audioSeconds float64) {
	m.UtterancesTotal.WithLabelValues(provider).Inc()
	m.UtteranceDuration.Observe(audioSeconds)
}

// RecordEmptyResult records an utterance that produced no speech.
func (m *Metrics) RecordEmptyResult(provider string) {
	m.UtterancesEmpty.WithLabelValues(provider).Inc()
}

// RecordFailedUtterance records an utterance that surfaced an error.
func (m *Metrics) RecordFailedUtterance(provider string) {
	m.UtterancesFailed.WithLabelValues(provider).Inc()
}

// RecordGateRejection records an utterance stopped by a gate.
// gate is "duration" or "text".
func (m *Metrics) RecordGateRejection(gate string) {
	m.GateRejections.WithLabelValues(gate).Inc()
}

// RecordASRLatency records backend processing latency.
func (m *Metrics) RecordASRLatency(provider string, seconds float64) {
	m.ASRLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordASRError records a typed backend error.
func (m *Metrics) RecordASRError(provider, errorType string) {
	m.ASRErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordRetry records a retry attempt against a backend.
func (m *Metrics) RecordRetry(provider string) {
	m.ASRRetries.WithLabelValues(provider).Inc()
}

// RecordModelSwap records a local model hot swap.
func (m *Metrics) RecordModelSwap() {
	m.ModelSwapsTotal.Inc()
}

// RecordTokenRefresh records an access token refresh attempt.
func (m *Metrics) RecordTokenRefresh(err error) {
	m.TokenRefreshTotal.Inc()
	if err != nil {
		m.TokenRefreshErrors.Inc()
	}
}

// RecordPacketDecoded records one decoded audio packet.
func (m *Metrics) RecordPacketDecoded() {
	m.AudioPacketsDecoded.Inc()
}

// RecordPacketCorrupt records one skipped corrupt packet.
func (m *Metrics) RecordPacketCorrupt() {
	m.AudioPacketsCorrupt.Inc()
}

// RecordAudioFileSaved records an intermediate WAV written to disk.
func (m *Metrics) RecordAudioFileSaved() {
	m.AudioFilesSaved.Inc()
}

// RecordSynthesisEnqueue records a unit entering a synthesis queue.
func (m *Metrics) RecordSynthesisEnqueue(kind string) {
	m.SynthesisUnitsEnqueued.WithLabelValues(kind).Inc()
	m.SynthesisQueueDepth.Inc()
}

// RecordSynthesisDequeue records a unit leaving a synthesis queue.
func (m *Metrics) RecordSynthesisDequeue() {
	m.SynthesisQueueDepth.Dec()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
