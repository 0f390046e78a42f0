// Package metrics defines the Prometheus collectors exported by inboxd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	MessagesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxd_messages_ingested_total",
			Help: "Messages stored by the ingestion pipeline",
		},
		[]string{"source"},
	)

	MessagesDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxd_messages_duplicate_total",
			Help: "Messages skipped because their message id was already stored",
		},
		[]string{"source"},
	)

	MessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxd_messages_failed_total",
			Help: "Messages dropped due to a parse or storage fault",
		},
		[]string{"source", "reason"},
	)

	UnresolvedDestinations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxd_unresolved_destinations_total",
			Help: "Stored messages whose destination address could not be resolved",
		},
	)
)

// IMAP source metrics
var (
	FetchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxd_imap_fetch_runs_total",
			Help: "Fetch-and-ingest runs against the upstream mailbox",
		},
		[]string{"trigger"},
	)

	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxd_imap_reconnects_total",
			Help: "Reconnection attempts to the upstream mailbox",
		},
	)

	ConnectedState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inboxd_imap_connected",
			Help: "Whether the upstream mailbox session is currently established (0 or 1)",
		},
	)
)

// Retention metrics
var (
	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxd_retention_deleted_total",
			Help: "Messages removed by the retention enforcer",
		},
	)

	RetentionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxd_retention_runs_total",
			Help: "Retention enforcer runs",
		},
		[]string{"status"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxd_http_requests_total",
			Help: "HTTP API requests served",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inboxd_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)
