// Package metrics exposes pipeline instrumentation over a Prometheus
// registry: which tier answered, how long inference took, and download
// progress for model artifacts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/triage-edge-server/internal/domain"
)

// Collector registers and updates the pipeline metrics. Use NewCollector
// once per process; registration panics on duplicates.
type Collector struct {
	registry *prometheus.Registry

	classifications  *prometheus.CounterVec
	cacheHits        prometheus.Counter
	inferenceLatency *prometheus.HistogramVec
	downloadProgress *prometheus.GaugeVec
	downloadBytes    *prometheus.CounterVec
	protocolMatches  prometheus.Counter
}

// NewCollector builds the collector on a private registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	classifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_classifications_total",
		Help: "Completed classifications by the tier that answered.",
	}, []string{"tier"})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triage_cache_hits_total",
		Help: "Symptom queries served from the result cache.",
	})
	inferenceLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "triage_inference_latency_seconds",
		Help:    "Wall-clock latency of a classification by tier.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"tier"})
	downloadProgress := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "triage_artifact_download_percent",
		Help: "Download progress per model artifact.",
	}, []string{"artifact"})
	downloadBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_artifact_download_bytes_total",
		Help: "Bytes received per model artifact across all attempts.",
	}, []string{"artifact"})
	protocolMatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triage_protocol_matches_total",
		Help: "Protocol lookups that returned a scored match.",
	})

	registry.MustRegister(classifications, cacheHits, inferenceLatency, downloadProgress, downloadBytes, protocolMatches)

	return &Collector{
		registry:         registry,
		classifications:  classifications,
		cacheHits:        cacheHits,
		inferenceLatency: inferenceLatency,
		downloadProgress: downloadProgress,
		downloadBytes:    downloadBytes,
		protocolMatches:  protocolMatches,
	}
}

// Registry returns the registry backing the /metrics endpoint.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveClassification records one completed classification.
func (c *Collector) ObserveClassification(tier domain.Tier, elapsed time.Duration) {
	c.classifications.WithLabelValues(tier.String()).Inc()
	c.inferenceLatency.WithLabelValues(tier.String()).Observe(elapsed.Seconds())
}

// ObserveCacheHit records a query served from the result cache.
func (c *Collector) ObserveCacheHit() {
	c.cacheHits.Inc()
}

// ObserveDownload records progress of one artifact transfer. A negative
// delta (a transfer restarting from zero after a rejected resume) is
// dropped; counters only move forward.
func (c *Collector) ObserveDownload(artifactID string, deltaBytes int64, percent float64) {
	if deltaBytes > 0 {
		c.downloadBytes.WithLabelValues(artifactID).Add(float64(deltaBytes))
	}
	c.downloadProgress.WithLabelValues(artifactID).Set(percent)
}

// ObserveProtocolMatch records one scored protocol lookup.
func (c *Collector) ObserveProtocolMatch() {
	c.protocolMatches.Inc()
}
