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

package orchestrator

import (
	"context"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/replenlab/replend/internal/classify"
	"github.com/replenlab/replend/internal/engine"
	"github.com/replenlab/replend/internal/frame"
	"github.com/replenlab/replend/internal/render"
	"github.com/replenlab/replend/internal/retrieval"
	"github.com/replenlab/replend/internal/rules"
	"github.com/replenlab/replend/internal/scenario"
	"github.com/replenlab/replend/pkg/core"
	"github.com/replenlab/replend/pkg/solver"
)

// switchableSolver delegates to the real solver until failNow is set, then
// faults. Lets a session succeed first and fail later.
type switchableSolver struct {
	inner   solver.Solver
	failNow bool
}

func (s *switchableSolver) Solve(ctx context.Context, p *solver.Problem) (*solver.Result, error) {
	if s.failNow {
		return nil, errors.New("simulated solver crash")
	}
	return s.inner.Solve(ctx, p)
}

// failingClassifier simulates an unreachable classification backend.
type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string) (classify.Intent, error) {
	return classify.IntentUnknown, errors.New("classifier backend unreachable")
}

func testRetriever() *retrieval.MemoryRetriever {
	f, err := frame.New("test", []frame.Row{
		{SKU: "SKU-1", Supplier: "acme", Resource: "warehouse", DemandMean: 10, UnitVolume: 1},
		{SKU: "SKU-2", Supplier: "acme", Resource: "warehouse", DemandMean: 20, UnitVolume: 1},
		{SKU: "SKU-3", Supplier: "globex", Resource: "warehouse", DemandMean: 30, UnitVolume: 1},
	})
	Expect(err).NotTo(HaveOccurred())
	return retrieval.NewMemoryRetriever(f)
}

var _ = Describe("Orchestrator", func() {
	var (
		orch     *Orchestrator
		sw       *switchableSolver
		chartDir string
		ctx      context.Context
	)

	newOrchestrator := func(c classify.Classifier, retryWait time.Duration) *Orchestrator {
		inner, err := solver.New(solver.SimplexStrategy)
		Expect(err).NotTo(HaveOccurred())
		sw = &switchableSolver{inner: inner}
		eng, err := engine.New(sw)
		Expect(err).NotTo(HaveOccurred())
		mgr, err := scenario.NewManager(eng)
		Expect(err).NotTo(HaveOccurred())

		cfg := DefaultConfig()
		cfg.RetryMaxElapsed = retryWait
		o, err := New(
			c,
			testRetriever(),
			render.NewFileRenderer(chartDir),
			eng,
			mgr,
			core.CompileParams{ServiceLevel: 0.95, HoldingCost: 1, StockoutPenalty: 50},
			WithConfig(cfg),
			WithBusinessRules(&rules.Set{
				Capacities: []rules.CapacityRule{{Resource: "warehouse", MaxUnits: 100}},
			}),
		)
		Expect(err).NotTo(HaveOccurred())
		return o
	}

	BeforeEach(func() {
		ctx = context.Background()
		chartDir = GinkgoT().TempDir()
		orch = newOrchestrator(classify.NewKeywordClassifier(), 2*time.Second)
	})

	Describe("optimize turns", func() {
		It("walks the dialogue states and activates the solved model", func() {
			resp, err := orch.HandleTurn(ctx, "", "optimize my inventory")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.SessionID).NotTo(BeEmpty())
			Expect(resp.Intent).To(Equal(classify.IntentOptimize))
			Expect(resp.Trace).To(Equal([]State{
				StateAwaitingIntent,
				StateCollectingInputs,
				StateBuildingModel,
				StatePresentingResult,
			}))
			Expect(resp.State).To(Equal(StateAwaitingFollowup), "presented results settle into followup")

			Expect(resp.Solution).NotTo(BeNil())
			Expect(resp.Solution.Status).To(Equal(core.StatusOptimal))

			sess, ok := orch.Sessions().Get(resp.SessionID)
			Expect(ok).To(BeTrue())
			Expect(sess.ActiveModel).NotTo(BeNil())
			Expect(sess.LastSolution).To(Equal(resp.Solution))
		})

		It("keeps the session usable across turns", func() {
			first, err := orch.HandleTurn(ctx, "", "optimize inventory")
			Expect(err).NotTo(HaveOccurred())

			second, err := orch.HandleTurn(ctx, first.SessionID, "optimize inventory")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.SessionID).To(Equal(first.SessionID))
			Expect(second.Solution.Status).To(Equal(core.StatusOptimal))
		})
	})

	Describe("retrieve turns", func() {
		It("returns data without touching the solver", func() {
			resp, err := orch.HandleTurn(ctx, "", "show me fast-moving items")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Intent).To(Equal(classify.IntentRetrieve))
			Expect(resp.Frame).NotTo(BeNil())
			Expect(resp.Solution).To(BeNil())

			sess, _ := orch.Sessions().Get(resp.SessionID)
			Expect(sess.ActiveModel).To(BeNil(), "retrieval must not create a model")
		})
	})

	Describe("what-if turns", func() {
		It("requires an active model", func() {
			resp, err := orch.HandleTurn(ctx, "", "what if demand +10%")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.Intent).To(Equal(classify.IntentWhatIf))
			Expect(resp.State).To(Equal(StateAwaitingFollowup))
			Expect(resp.Message).To(ContainSubstring("no active model"))
			Expect(resp.Solution).To(BeNil())
		})

		It("solves deltas against the active model and stacks them", func() {
			first, err := orch.HandleTurn(ctx, "", "optimize inventory")
			Expect(err).NotTo(HaveOccurred())
			baseObjective := first.Solution.Objective

			resp, err := orch.HandleTurn(ctx, first.SessionID, "what if demand +50%")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Solution).NotTo(BeNil())
			Expect(resp.Solution.Status).To(Equal(core.StatusOptimal))
			Expect(resp.Solution.Objective).To(BeNumerically(">", baseObjective))

			sess, _ := orch.Sessions().Get(first.SessionID)
			Expect(sess.ScenarioStack).To(HaveLen(1))
			Expect(sess.ActiveModel.Fingerprint()).To(Equal(first.Solution.SpecFingerprint),
				"what-if must not replace the base model")
		})

		It("reports unparseable scenarios as followups", func() {
			first, err := orch.HandleTurn(ctx, "", "optimize inventory")
			Expect(err).NotTo(HaveOccurred())

			resp, err := orch.HandleTurn(ctx, first.SessionID, "what if things were nicer")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.State).To(Equal(StateAwaitingFollowup))
			Expect(resp.Message).To(ContainSubstring("could not read"))
		})

		It("rolls back on a solver fault", func() {
			first, err := orch.HandleTurn(ctx, "", "optimize inventory")
			Expect(err).NotTo(HaveOccurred())
			sess, _ := orch.Sessions().Get(first.SessionID)
			model := sess.ActiveModel
			solution := sess.LastSolution

			sw.failNow = true
			resp, err := orch.HandleTurn(ctx, first.SessionID, "what if demand +75%")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.State).To(Equal(StateError))

			Expect(sess.ActiveModel).To(BeIdenticalTo(model), "rollback keeps the pre-dispatch model")
			Expect(sess.LastSolution).To(BeIdenticalTo(solution))
			Expect(sess.ScenarioStack).To(BeEmpty(), "a failed scenario is not stacked")
		})
	})

	Describe("visualize turns", func() {
		It("renders the latest solution without re-solving", func() {
			first, err := orch.HandleTurn(ctx, "", "optimize inventory")
			Expect(err).NotTo(HaveOccurred())

			resp, err := orch.HandleTurn(ctx, first.SessionID, "plot the order quantities")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Intent).To(Equal(classify.IntentVisualize))
			Expect(resp.Render).NotTo(BeNil())

			_, statErr := os.Stat(resp.Render.FilePath)
			Expect(statErr).NotTo(HaveOccurred(), "chart spec must exist on disk")
		})

		It("asks for an optimization first when there is nothing to chart", func() {
			resp, err := orch.HandleTurn(ctx, "", "plot the results")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.State).To(Equal(StateAwaitingFollowup))
			Expect(resp.Render).To(BeNil())
		})
	})

	Describe("solver faults on optimize", func() {
		It("enters the error state without adopting a partial model", func() {
			sw.failNow = true
			resp, err := orch.HandleTurn(ctx, "", "optimize inventory")
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.State).To(Equal(StateError))
			sess, _ := orch.Sessions().Get(resp.SessionID)
			Expect(sess.ActiveModel).To(BeNil())
		})
	})

	Describe("classifier failures", func() {
		It("reports the failure instead of defaulting an intent", func() {
			failing := newOrchestrator(failingClassifier{}, 50*time.Millisecond)

			resp, err := failing.HandleTurn(ctx, "", "optimize inventory")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.State).To(Equal(StateError))
			Expect(resp.Intent).To(Equal(classify.IntentUnknown))
			Expect(resp.Solution).To(BeNil())
		})
	})

	Describe("unknown and clarify turns", func() {
		It("offers guidance", func() {
			resp, err := orch.HandleTurn(ctx, "", "tell me a joke")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Intent).To(Equal(classify.IntentUnknown))
			Expect(resp.State).To(Equal(StateAwaitingFollowup))
			Expect(resp.Message).To(ContainSubstring("Try:"))
		})
	})

	Describe("session history", func() {
		It("truncates oldest-first past the window", func() {
			cfg := DefaultConfig()
			cfg.HistoryWindow = 4
			small, err := New(
				classify.NewKeywordClassifier(),
				testRetriever(),
				render.NewFileRenderer(chartDir),
				mustEngine(),
				mustManager(),
				core.CompileParams{ServiceLevel: 0.95, HoldingCost: 1, StockoutPenalty: 50},
				WithConfig(cfg),
			)
			Expect(err).NotTo(HaveOccurred())

			var sessionID string
			for i := 0; i < 5; i++ {
				resp, err := small.HandleTurn(ctx, sessionID, "show inventory")
				Expect(err).NotTo(HaveOccurred())
				sessionID = resp.SessionID
			}

			sess, _ := small.Sessions().Get(sessionID)
			Expect(len(sess.History)).To(Equal(4))
			Expect(sess.History[len(sess.History)-2].Role).To(Equal("user"),
				"the newest user turn survives truncation")
		})
	})
})

func mustEngine() *engine.Engine {
	s, err := solver.New(solver.SimplexStrategy)
	Expect(err).NotTo(HaveOccurred())
	eng, err := engine.New(s)
	Expect(err).NotTo(HaveOccurred())
	return eng
}

func mustManager() *scenario.Manager {
	mgr, err := scenario.NewManager(mustEngine())
	Expect(err).NotTo(HaveOccurred())
	return mgr
}
