package catalog

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_operations_total",
			Help: "Total number of catalog operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_operation_duration_seconds",
			Help:    "Duration of catalog operations in seconds",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .1},
		},
		[]string{"operation"},
	)

	booksGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_books",
			Help: "Number of books currently in the catalog",
		},
	)
)

// Outcome label values.
const (
	outcomeSuccess     = "success"
	outcomeValidation  = "validation_error"
	outcomeConflict    = "conflict"
	outcomeNotFound    = "not_found"
	outcomeRateLimited = "rate_limited"
	outcomeError       = "error"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrValidation):
		return outcomeValidation
	case errors.Is(err, ErrConflict):
		return outcomeConflict
	case errors.Is(err, ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrRateLimited):
		return outcomeRateLimited
	default:
		return outcomeError
	}
}
