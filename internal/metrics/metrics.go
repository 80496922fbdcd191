package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// SessionsCreatedTotal counts upload sessions minted
	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidrop_sessions_created_total",
			Help: "Total number of upload sessions created",
		},
	)

	// SessionsCompletedTotal counts sessions that assembled successfully
	SessionsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidrop_sessions_completed_total",
			Help: "Total number of upload sessions completed",
		},
	)

	// SessionsCancelledTotal counts sessions removed via cancel or expiry
	SessionsCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidrop_sessions_cancelled_total",
			Help: "Total number of upload sessions cancelled",
		},
		[]string{"reason"},
	)

	// ChunksReceivedTotal counts individual chunks accepted
	ChunksReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidrop_chunks_received_total",
			Help: "Total number of file chunks received",
		},
	)

	// ChunksDuplicateTotal counts chunks acknowledged without being re-staged
	ChunksDuplicateTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidrop_chunks_duplicate_total",
			Help: "Total number of duplicate chunks acknowledged idempotently",
		},
	)

	// AssemblyFailuresTotal counts assemblies that had to be rolled back
	AssemblyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evidrop_assembly_failures_total",
			Help: "Total number of failed artifact assemblies",
		},
	)

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ErrorsTotal counts application errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidrop_errors_total",
			Help: "Total number of application errors",
		},
		[]string{"type"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evidrop_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// ArtifactSizeBytes tracks distribution of assembled artifact sizes
	ArtifactSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "evidrop_artifact_size_bytes",
			Help: "Distribution of assembled evidence artifact sizes in bytes",
			Buckets: []float64{
				1024,        // 1 KB
				10240,       // 10 KB
				102400,      // 100 KB
				1048576,     // 1 MB
				10485760,    // 10 MB
				104857600,   // 100 MB
				1073741824,  // 1 GB
				10737418240, // 10 GB
			},
		},
	)

	// AssemblyDuration tracks time spent concatenating staged chunks
	AssemblyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evidrop_assembly_duration_seconds",
			Help:    "Artifact assembly time in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)
