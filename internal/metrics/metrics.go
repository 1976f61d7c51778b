/*
Copyright 2025 The replend Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics registers replend's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replend_turns_total",
		Help: "Conversation turns processed, by classified intent.",
	}, []string{"intent"})

	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replend_solves_total",
		Help: "Solver invocations, by outcome status.",
	}, []string{"status"})

	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "replend_solve_duration_seconds",
		Help:    "Wall-clock duration of solver invocations.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replend_scenario_cache_hits_total",
		Help: "Scenario cache hits.",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replend_scenario_cache_misses_total",
		Help: "Scenario cache misses.",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "replend_sessions_active",
		Help: "Sessions currently live in the session store.",
	})
)

// IncTurn counts a processed turn for the given intent label.
func IncTurn(intent string) { turnsTotal.WithLabelValues(intent).Inc() }

// IncSolve counts a solver invocation outcome.
func IncSolve(status string) { solvesTotal.WithLabelValues(status).Inc() }

// ObserveSolveDuration records a solver invocation duration.
func ObserveSolveDuration(d time.Duration) { solveDuration.Observe(d.Seconds()) }

// IncCacheHit counts a scenario cache hit.
func IncCacheHit() { cacheHitsTotal.Inc() }

// IncCacheMiss counts a scenario cache miss.
func IncCacheMiss() { cacheMissesTotal.Inc() }

// SetActiveSessions publishes the live session count.
func SetActiveSessions(n int) { sessionsActive.Set(float64(n)) }
