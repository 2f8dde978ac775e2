// Package metrics exposes Prometheus instrumentation for the narration pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "postcast"

var (
	synthesisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_requests_total",
			Help:      "Total number of speech synthesis attempts",
		},
		[]string{"status"}, // status: success, error
	)

	synthesisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_request_duration_seconds",
			Help:      "Duration of single speech synthesis attempts in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of narration generation requests by outcome",
		},
		[]string{"outcome"}, // outcome: generated, existed, rejected, failed
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of narration generation requests in seconds",
			Buckets:   []float64{.05, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	generationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generations_active",
			Help:      "Number of narrations currently being synthesized",
		},
	)

	audioBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_artifact_bytes",
			Help:      "Size of stored narration artifacts in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 2, 10),
		},
	)

	allMetrics = []prometheus.Collector{
		synthesisRequestsTotal,
		synthesisDuration,
		generationsTotal,
		generationDuration,
		generationsActive,
		audioBytes,
	}
)

// NewRegistry returns a registry holding the pipeline metrics plus Go runtime
// and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func RecordSynthesisAttempt(status string, durationSeconds float64) {
	synthesisRequestsTotal.WithLabelValues(status).Inc()
	synthesisDuration.Observe(durationSeconds)
}

func RecordGenerationStart() {
	generationsActive.Inc()
}

func RecordGenerationEnd(outcome string, durationSeconds float64) {
	generationsActive.Dec()
	generationsTotal.WithLabelValues(outcome).Inc()
	generationDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

func RecordAudioBytes(n int) {
	audioBytes.Observe(float64(n))
}
