package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EntriesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendant_entries_recorded_total",
		Help: "Vehicle entries written to the ledger",
	})

	ExitsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendant_exits_processed_total",
		Help: "Exit requests by outcome",
	}, []string{"outcome"})

	ReceiptsWithoutConversion = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendant_receipts_without_conversion_total",
		Help: "Receipts issued without a foreign currency equivalent because the rate was unavailable",
	})

	ParkingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendant_parking_duration_seconds",
		Help:    "Elapsed time of closed parking sessions",
		Buckets: prometheus.ExponentialBuckets(600, 2, 10),
	})
)

const (
	outcomeCompleted = "completed"
	outcomeNotFound  = "not_found"
	outcomeError     = "error"
)
