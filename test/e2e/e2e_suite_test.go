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

package e2e

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/go-logr/logr"

	"github.com/replenlab/replend/internal/classify"
	"github.com/replenlab/replend/internal/config"
	"github.com/replenlab/replend/internal/engine"
	"github.com/replenlab/replend/internal/orchestrator"
	"github.com/replenlab/replend/internal/render"
	"github.com/replenlab/replend/internal/retrieval"
	"github.com/replenlab/replend/internal/scenario"
	"github.com/replenlab/replend/internal/server"
	"github.com/replenlab/replend/pkg/core"
	"github.com/replenlab/replend/pkg/solver"
)

const sampleCSV = `sku,description,supplier,resource,stock_on_hand,demand_mean,demand_std,unit_volume,transport_cost,holding_cost,lead_time_days
SKU-1,industrial valve,acme,warehouse,5,40,8,2,1.5,1,14
SKU-2,pipe fitting,acme,warehouse,20,80,12,1,0.8,1,14
SKU-3,gasket set,globex,warehouse,0,25,5,0.5,0.4,1,30
SKU-4,bearing assembly,globex,warehouse,10,60,15,1.5,1.2,1,21
`

const sampleRules = `
priorities:
  - skuSet: [SKU-1]
    policy: penalized
    penaltyMultiplier: 3
capacities:
  - resource: warehouse
    maxUnits: 500
`

// TestE2E exercises the whole service over HTTP: a real CSV snapshot, rules
// loaded from YAML, the simplex solver, the scenario cache backed by SQLite,
// and the chi router, with only the network listener replaced by httptest.
func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Replend E2E Suite")
}

var (
	srv      *httptest.Server
	chartDir string
)

var _ = BeforeSuite(func() {
	dir := GinkgoT().TempDir()
	chartDir = filepath.Join(dir, "charts")
	Expect(os.MkdirAll(chartDir, 0o755)).To(Succeed())

	csvPath := filepath.Join(dir, "inventory.csv")
	Expect(os.WriteFile(csvPath, []byte(sampleCSV), 0o644)).To(Succeed())
	rulesPath := filepath.Join(dir, "rules.yaml")
	Expect(os.WriteFile(rulesPath, []byte(sampleRules), 0o644)).To(Succeed())

	retriever, err := retrieval.LoadCSV(csvPath, "e2e")
	Expect(err).NotTo(HaveOccurred())
	ruleSet, err := config.LoadRules(rulesPath)
	Expect(err).NotTo(HaveOccurred())

	s, err := solver.New(solver.SimplexStrategy)
	Expect(err).NotTo(HaveOccurred())
	eng, err := engine.New(s, engine.WithSolveTimeout(10*time.Second))
	Expect(err).NotTo(HaveOccurred())

	store, err := scenario.OpenSQLiteStore(filepath.Join(dir, "scenarios.db"))
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(store.Close)
	mgr, err := scenario.NewManager(eng,
		scenario.WithCache(scenario.NewCache(64, time.Hour)),
		scenario.WithStore(store),
	)
	Expect(err).NotTo(HaveOccurred())

	orch, err := orchestrator.New(
		classify.NewKeywordClassifier(),
		retriever,
		render.NewFileRenderer(chartDir),
		eng,
		mgr,
		core.CompileParams{ServiceLevel: 0.95, HoldingCost: 1, StockoutPenalty: 50},
		orchestrator.WithBusinessRules(ruleSet),
	)
	Expect(err).NotTo(HaveOccurred())

	api := server.New(orch, config.ServerConfig{
		Addr:          ":0",
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
		ShutdownGrace: time.Second,
	}, logr.Discard())

	srv = httptest.NewServer(api.Routes())
	DeferCleanup(srv.Close)
})
