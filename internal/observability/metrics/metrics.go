// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "discord_transcriber"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestsActive   prometheus.Gauge
	RequestsRejected *prometheus.CounterVec
	RequestOutcomes  *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	IndexHits        prometheus.Counter

	// Stage metrics
	ConversionLatency prometheus.Histogram
	AudioBytesFetched prometheus.Counter

	// STT metrics
	STTLatency *prometheus.HistogramVec
	STTErrors  *prometheus.CounterVec

	// Worker pool metrics
	WorkersBusy prometheus.Gauge

	// Live voice metrics
	LiveSessionsActive prometheus.Gauge
	LiveSegmentsTotal  *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Command metrics
	CommandsTotal *prometheus.CounterVec

	// gRPC metrics
	GRPCRequestsTotal  *prometheus.CounterVec
	GRPCRequestLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of transcription requests received",
		}, []string{"trigger"}),
		RequestsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_active",
			Help:      "Number of transcription requests currently in flight",
		}),
		RequestsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Total number of requests rejected before conversion",
		}, []string{"reason"}),
		RequestOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_outcomes_total",
			Help:      "Total number of finished requests by final state and failure kind",
		}, []string{"state", "failure"}),
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from placeholder reply to final edit",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		IndexHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_hits_total",
			Help:      "Manual transcribe commands answered from the previous-transcription index",
		}),

		ConversionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_latency_seconds",
			Help:      "Audio decode and re-encode latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		AudioBytesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_fetched_total",
			Help:      "Total attachment bytes downloaded",
		}),

		STTLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text processing latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"engine"}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"engine", "error_type"}),

		WorkersBusy: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Number of worker pool slots currently in use",
		}),

		LiveSessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of voice channels being transcribed",
		}),
		LiveSegmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_segments_total",
			Help:      "Total number of live speaker segments by outcome",
		}, []string{"outcome"}),

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

		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of commands invoked",
		}, []string{"command", "surface"}),

		GRPCRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC calls by method and status code",
		}, []string{"method", "code"}),
		GRPCRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_latency_seconds",
			Help:      "gRPC call latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method"}),
	}
}

// RecordRequestStart records a request accepted by the pipeline.
func (m *Metrics) RecordRequestStart(trigger string) {
	m.RequestsTotal.WithLabelValues(trigger).Inc()
	m.RequestsActive.Inc()
}

// RecordRequestEnd records a request reaching a terminal state.
func (m *Metrics) RecordRequestEnd(state, failure string, durationSeconds float64) {
	m.RequestsActive.Dec()
	m.RequestOutcomes.WithLabelValues(state, failure).Inc()
	if durationSeconds > 0 {
		m.RequestDuration.Observe(durationSeconds)
	}
}

// RecordRejected records a request rejected before any work started.
func (m *Metrics) RecordRejected(reason string) {
	m.RequestsRejected.WithLabelValues(reason).Inc()
}

// RecordIndexHit records a manual command served from the index.
func (m *Metrics) RecordIndexHit() {
	m.IndexHits.Inc()
}

// RecordConversion records one decode and re-encode.
func (m *Metrics) RecordConversion(inputBytes int, latencySeconds float64) {
	m.AudioBytesFetched.Add(float64(inputBytes))
	m.ConversionLatency.Observe(latencySeconds)
}

// RecordSTT records an engine call.
func (m *Metrics) RecordSTT(engine string, latencySeconds float64) {
	m.STTLatency.WithLabelValues(engine).Observe(latencySeconds)
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(engine, errorType string) {
	m.STTErrors.WithLabelValues(engine, errorType).Inc()
}

// RecordWorker tracks worker slot usage; delta is +1 on acquire and -1 on release.
func (m *Metrics) RecordWorker(delta float64) {
	m.WorkersBusy.Add(delta)
}

// RecordLiveSession tracks joined voice channels; delta is +1 on join and -1 on leave.
func (m *Metrics) RecordLiveSession(delta float64) {
	m.LiveSessionsActive.Add(delta)
}

// RecordLiveSegment records a live segment outcome (posted, silent, dropped, failed).
func (m *Metrics) RecordLiveSegment(outcome string) {
	m.LiveSegmentsTotal.WithLabelValues(outcome).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordCommand records a command invocation.
func (m *Metrics) RecordCommand(command, surface string) {
	m.CommandsTotal.WithLabelValues(command, surface).Inc()
}

// RecordGRPC records a finished gRPC call.
func (m *Metrics) RecordGRPC(method, code string, latencySeconds float64) {
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	m.GRPCRequestLatency.WithLabelValues(method).Observe(latencySeconds)
}
