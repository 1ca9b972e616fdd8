// Package metrics exposes Prometheus instrumentation for the ingest
// pipeline. Everything is registered on the default registry and served
// from the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hooktail_ingest_events_total",
			Help: "Total number of hook events ingested, by canonical type",
		},
		[]string{"type"},
	)

	CacheWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hooktail_ingest_cache_write_errors_total",
			Help: "Total number of cache write failures during ingestion",
		},
	)

	TimestampFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hooktail_ingest_timestamp_fallbacks_total",
			Help: "Total number of payloads whose timestamp fell back to the wall clock",
		},
	)

	EventsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hooktail_ingest_events_evicted_total",
			Help: "Total number of events evicted by the retention limit",
		},
	)

	NormalizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hooktail_ingest_normalization_duration_seconds",
			Help:    "Duration of payload normalization in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cache metrics
	CachedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hooktail_cache_events",
			Help: "Current number of events held in the cache",
		},
	)

	// Stream metrics
	StreamDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hooktail_stream_disconnects_total",
			Help: "Total number of unexpected stream terminations",
		},
	)
)
