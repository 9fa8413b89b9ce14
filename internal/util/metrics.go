package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_rows_total",
		Help: "Total number of purchase feed rows read",
	})

	IngestOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_orders_total",
		Help: "Total number of orders materialized by ingestion",
	})

	IngestParticipantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_participants_total",
		Help: "Total number of participant slots materialized by ingestion",
	})

	IngestRowsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rows_skipped_total",
		Help: "Total number of feed rows that did not join any order",
	}, []string{"reason"})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_duration_seconds",
		Help:    "Duration of full ingestion runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	ParticipantsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "participants_completed_total",
		Help: "Total number of participant forms submitted",
	})

	OrdersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancellation attempts by outcome",
	}, []string{"status"})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "login_attempts_total",
		Help: "Total number of login attempts",
	}, []string{"realm", "result"})

	AuditEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_events_total",
		Help: "Total number of registration events recorded",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
