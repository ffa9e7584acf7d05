// Package metrics holds the Prometheus collectors of the bot. They are
// updated from the record store and the dispatcher and exposed on /metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dailylog-bot/internal/apperr"
)

var (
	// StoreOperationsTotal counts record store operations by outcome.
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailylog_store_operations_total",
			Help: "Record store operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// StoreOperationDuration covers the full fetch-mutate-upload cycle.
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailylog_store_operation_duration_seconds",
			Help:    "Duration of record store operations including remote round-trips",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// TurnsTotal counts dispatched user turns by command.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailylog_turns_total",
			Help: "Handled user turns by command",
		},
		[]string{"command"},
	)
)

// ObserveStore records one store operation started at start.
func ObserveStore(op string, start time.Time, err error) {
	StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	StoreOperationsTotal.WithLabelValues(op, Result(err)).Inc()
}

// Result maps an error to a low-cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrRemoteUnavailable):
		return "remote_error"
	default:
		return "error"
	}
}
