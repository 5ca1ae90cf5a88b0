package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_runs_total",
		Help: "Sync runs by mode and final status.",
	}, []string{"mode", "status"})

	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_items_total",
		Help: "Products handled by sync runs by outcome.",
	}, []string{"mode", "outcome"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_sync_run_duration_seconds",
		Help:    "Wall time of sync runs, catalog read included.",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"mode"})
)
