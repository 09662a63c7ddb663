package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of ledger operations labeled by operation and result",
		},
		[]string{"operation", "result"},
	)
	ledgerDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Duration of ledger operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	chatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages routed labeled by kind",
		},
		[]string{"kind"},
	)
	chatDeliveriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_deliveries_dropped_total",
			Help: "Deliveries dropped because a recipient could not keep up or was gone",
		},
	)
	chatConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections",
			Help: "Current number of connected chat clients",
		},
	)
)

// RecordLedger counts a ledger operation and records its duration.
func RecordLedger(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = "unknown"
	}

	ledgerOperationsTotal.WithLabelValues(operation, result).Inc()
	ledgerDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordChatMessage(kind string) {
	chatMessagesTotal.WithLabelValues(kind).Inc()
}

func RecordDroppedDelivery() {
	chatDeliveriesDropped.Inc()
}

func SetChatConnections(count int) {
	chatConnections.Set(float64(count))
}
