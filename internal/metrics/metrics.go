// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

// Package metrics provides Prometheus instrumentation for the linkage engine.
//
// Metrics are registered on the default registry via promauto and cover
// blocking throughput, sampling behavior, slow-join detections and weight
// training. Consumers embedding the library expose them with
// promhttp.Handler(); the CLI logs a summary instead.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlockingRuns counts blocking operations, labeled by blocker kind
	// (key, predicate, sample).
	BlockingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkforge_blocking_runs_total",
			Help: "Total number of blocking operations by blocker kind",
		},
		[]string{"blocker"},
	)

	// SampledPairs counts candidate pairs drawn by the sampling blocker,
	// where the pair count is known without executing the join.
	SampledPairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkforge_sampled_pairs_total",
			Help: "Total number of candidate pairs drawn by sampling",
		},
	)

	// SlowJoins counts join conditions classified as requiring a full
	// cross product, labeled by the policy that handled them.
	SlowJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkforge_slow_joins_total",
			Help: "Total number of join conditions classified as slow",
		},
		[]string{"policy"},
	)

	// SamplingRounds counts oversampling rounds needed to reach the
	// requested number of unique pairs.
	SamplingRounds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkforge_sampling_rounds_total",
			Help: "Total number of oversampling rounds during pair sampling",
		},
	)

	// TrainingRuns counts weight-estimation passes, labeled by the
	// probability being estimated (m or u).
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkforge_training_runs_total",
			Help: "Total number of weight estimation passes",
		},
		[]string{"parameter"},
	)

	// TrainingDuration observes wall-clock duration of estimation passes.
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkforge_training_duration_seconds",
			Help:    "Duration of weight estimation passes in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)
)
