// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes Prometheus instrumentation for statistics runs.
//
//   - hmd_cache_hits_total / hmd_cache_misses_total: labels cache (result, aggregate)
//   - hmd_cache_errors_total: unreadable or corrupt entries, labels cache
//   - hmd_session_compute_seconds: resample + metrics for one session
//   - hmd_group_aggregate_seconds: aggregation and export of one group, labels kind
//   - hmd_session_failures_total: sessions dropped from a run, labels reason
//   - hmd_runs_total: finished runs, labels result (success, error)
//   - hmd_run_in_progress: 1 while a run is active
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmd_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmd_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmd_cache_errors_total",
			Help: "Cache entries that could not be read or decoded",
		},
		[]string{"cache"},
	)

	SessionComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hmd_session_compute_seconds",
			Help:    "Time to resample a session and compute its metrics",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
	)

	GroupAggregateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hmd_group_aggregate_seconds",
			Help:    "Time to aggregate and export one group",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	SessionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmd_session_failures_total",
			Help: "Sessions excluded from a run",
		},
		[]string{"reason"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hmd_runs_total",
			Help: "Finished statistics runs",
		},
		[]string{"result"},
	)

	RunInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hmd_run_in_progress",
			Help: "1 while a statistics run is active",
		},
	)
)

// RecordCacheLookup counts a hit or a miss for cache.
func RecordCacheLookup(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
		return
	}
	CacheMisses.WithLabelValues(cache).Inc()
}

func RecordSessionCompute(d time.Duration) {
	SessionComputeDuration.Observe(d.Seconds())
}

func RecordGroupAggregate(kind string, d time.Duration) {
	GroupAggregateDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordRun marks the end of a run.
func RecordRun(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	RunsTotal.WithLabelValues(result).Inc()
}
