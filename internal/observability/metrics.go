package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courts_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "courts_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	SlotLockAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courts_slot_lock_acquisitions_total",
			Help: "Slot lock acquisition attempts by result",
		},
		[]string{"result"},
	)

	BookingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courts_booking_decisions_total",
			Help: "Booking engine decisions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LedgerWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courts_ledger_write_failures_total",
			Help: "Ledger writes that failed after the booking change committed",
		},
		[]string{"kind"},
	)

	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courts_notification_failures_total",
			Help: "Notifications that could not be dispatched",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "courts_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courts_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courts_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
