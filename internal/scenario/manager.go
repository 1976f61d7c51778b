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

package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/replenlab/replend/internal/engine"
	"github.com/replenlab/replend/internal/metrics"
	"github.com/replenlab/replend/pkg/core"
)

// Manager is the what-if engine: it derives model specs from a base spec and
// a delta sequence, re-solves through the modeling engine, and caches results
// by scenario identity.
type Manager struct {
	engine *engine.Engine
	cache  *Cache
	store  Store
	logger logr.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCache overrides the default in-memory cache.
func WithCache(c *Cache) ManagerOption {
	return func(m *Manager) { m.cache = c }
}

// WithStore attaches a persistent backing store; results are written through
// and read on cache misses, so scenarios survive restarts.
func WithStore(s Store) ManagerOption {
	return func(m *Manager) { m.store = s }
}

// WithManagerLogger sets the manager logger.
func WithManagerLogger(logger logr.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager on top of the modeling engine.
func NewManager(eng *engine.Engine, opts ...ManagerOption) (*Manager, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	m := &Manager{
		engine: eng,
		cache:  NewCache(DefaultCacheSize, 0),
		logger: logr.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Apply produces the derived ModelSpec for a delta sequence without solving.
func (m *Manager) Apply(base *core.ModelSpec, deltas []Delta) (*core.ModelSpec, error) {
	return Apply(base, deltas)
}

// Run solves the scenario identified by (base, deltas). A cache hit returns
// the stored Solution with no re-solve and is observably identical to a
// fresh solve. Solver faults are never cached.
func (m *Manager) Run(ctx context.Context, base *core.ModelSpec, deltas []Delta) (*core.Solution, error) {
	key := KeyFor(base, deltas)

	if sol, ok := m.cache.Get(key); ok {
		metrics.IncCacheHit()
		m.logger.V(1).Info("scenario cache hit", "key", key.String())
		return sol, nil
	}
	if m.store != nil {
		sol, ok, err := m.store.Load(key)
		if err != nil {
			// A broken store degrades to a re-solve, not a failed scenario.
			m.logger.Error(err, "scenario store read failed", "key", key.String())
		} else if ok {
			metrics.IncCacheHit()
			return m.cache.Add(key, sol), nil
		}
	}
	metrics.IncCacheMiss()

	derived, err := m.Apply(base, deltas)
	if err != nil {
		return nil, err
	}
	spec, err := m.engine.Build(derived.Frame, derived.Rules, derived.Params)
	if err != nil {
		return nil, fmt.Errorf("build scenario model: %w", err)
	}
	start := time.Now()
	sol, err := m.engine.Solve(ctx, spec)
	if err != nil {
		return nil, err
	}
	if sol.Status == core.StatusSolverError {
		return sol, nil
	}

	stored := m.cache.Add(key, sol)
	if m.store != nil {
		if err := m.store.Save(key, stored); err != nil {
			m.logger.Error(err, "scenario store write failed", "key", key.String())
		}
	}
	m.logger.V(1).Info("scenario solved",
		"key", key.String(),
		"status", stored.Status,
		"deltas", len(deltas),
		"duration", time.Since(start))
	return stored, nil
}
