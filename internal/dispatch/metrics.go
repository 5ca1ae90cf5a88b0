package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/catalog-sync/internal/domain"
)

var (
	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_sync_batch_duration_seconds",
		Help:    "Time spent delivering one batch.",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"mode"})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_batches_total",
		Help: "Delivered batches by outcome.",
	}, []string{"mode", "outcome"})
)

func observeBatch(mode domain.Mode, outcome string, d time.Duration) {
	batchDuration.WithLabelValues(string(mode)).Observe(d.Seconds())
	batchesTotal.WithLabelValues(string(mode), outcome).Inc()
}
