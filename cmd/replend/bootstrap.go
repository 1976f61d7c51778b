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

package main

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/replenlab/replend/internal/classify"
	"github.com/replenlab/replend/internal/config"
	"github.com/replenlab/replend/internal/engine"
	"github.com/replenlab/replend/internal/logging"
	"github.com/replenlab/replend/internal/orchestrator"
	"github.com/replenlab/replend/internal/render"
	"github.com/replenlab/replend/internal/retrieval"
	"github.com/replenlab/replend/internal/scenario"
	"github.com/replenlab/replend/pkg/solver"
)

// app holds the wired service components plus their cleanup hook.
type app struct {
	orch   *orchestrator.Orchestrator
	logger logr.Logger
	close  func()
}

// buildApp wires the full service stack from configuration: CSV-backed
// retrieval, keyword classification, the simplex engine, the scenario
// manager with its cache and optional SQLite store, and the orchestrator on
// top.
func buildApp(cfg *config.Config) (*app, error) {
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Development)

	retriever, err := retrieval.LoadCSV(cfg.Data.CSVPath, snapshotVersion(cfg.Data.CSVPath))
	if err != nil {
		return nil, fmt.Errorf("load inventory data: %w", err)
	}
	baseRules, err := config.LoadRules(cfg.Data.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load business rules: %w", err)
	}

	slv, err := solver.New(solver.SimplexStrategy)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(slv,
		engine.WithLogger(logger.WithName("engine")),
		engine.WithSolveTimeout(cfg.Solver.Timeout),
	)
	if err != nil {
		return nil, err
	}

	mgrOpts := []scenario.ManagerOption{
		scenario.WithCache(scenario.NewCache(cfg.Scenario.CacheSize, cfg.Scenario.CacheTTL)),
		scenario.WithManagerLogger(logger.WithName("scenario")),
	}
	cleanup := func() {}
	if cfg.Scenario.StorePath != "" {
		store, err := scenario.OpenSQLiteStore(cfg.Scenario.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open scenario store: %w", err)
		}
		mgrOpts = append(mgrOpts, scenario.WithStore(store))
		cleanup = func() { _ = store.Close() }
	}
	mgr, err := scenario.NewManager(eng, mgrOpts...)
	if err != nil {
		cleanup()
		return nil, err
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.HistoryWindow = cfg.Session.HistoryWindow
	orchCfg.IdleTimeout = cfg.Session.IdleTimeout

	orch, err := orchestrator.New(
		classify.NewKeywordClassifier(),
		retriever,
		render.NewFileRenderer(cfg.Data.ChartDir),
		eng,
		mgr,
		cfg.CompileParams(),
		orchestrator.WithLogger(logger.WithName("orchestrator")),
		orchestrator.WithConfig(orchCfg),
		orchestrator.WithBusinessRules(baseRules),
	)
	if err != nil {
		cleanup()
		return nil, err
	}

	return &app{orch: orch, logger: logger, close: cleanup}, nil
}

// snapshotVersion tags the loaded frame so responses name the data vintage.
func snapshotVersion(path string) string {
	return fmt.Sprintf("%s@%s", path, time.Now().UTC().Format("2006-01-02"))
}
