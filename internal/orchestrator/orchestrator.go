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

// Package orchestrator drives the conversation: it classifies each turn into
// an intent, gathers required inputs, dispatches to the modeling engine or
// the scenario manager, and maintains per-session dialogue state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"

	"github.com/replenlab/replend/internal/classify"
	"github.com/replenlab/replend/internal/engine"
	"github.com/replenlab/replend/internal/frame"
	"github.com/replenlab/replend/internal/metrics"
	"github.com/replenlab/replend/internal/render"
	"github.com/replenlab/replend/internal/retrieval"
	"github.com/replenlab/replend/internal/rules"
	"github.com/replenlab/replend/internal/scenario"
	"github.com/replenlab/replend/pkg/core"
)

// ErrNoActiveModel reports a what-if or visualize request with no base model
// in the session. It is user-facing: the user is prompted to optimize first.
var ErrNoActiveModel = errors.New("no active model in session")

// Response is the orchestrator's answer to one turn, handed to the front end
// and, for solved models, to the renderer.
type Response struct {
	// SessionID identifies the session the turn belongs to.
	SessionID string `json:"sessionId"`

	// Intent is the classified intent of the turn.
	Intent classify.Intent `json:"intent"`

	// State is the dialogue state after handling the turn.
	State State `json:"state"`

	// Trace lists the states traversed while handling the turn, in order.
	Trace []State `json:"trace,omitempty"`

	// Message is the user-facing reply.
	Message string `json:"message"`

	// Frame carries retrieved data (retrieve intent).
	Frame *frame.Frame `json:"frame,omitempty"`

	// Solution carries solve results (optimize and what_if intents).
	Solution *core.Solution `json:"solution,omitempty"`

	// Render locates the chart artifact (visualize intent).
	Render *render.RenderResult `json:"render,omitempty"`
}

// Config tunes orchestrator behavior.
type Config struct {
	// HistoryWindow bounds per-session turn history.
	HistoryWindow int

	// IdleTimeout expires inactive sessions.
	IdleTimeout time.Duration

	// RetryMaxTries bounds classifier/retrieval attempts (1 try + 1 retry).
	RetryMaxTries uint

	// RetryMaxElapsed bounds total retry time per backend call.
	RetryMaxElapsed time.Duration
}

// DefaultConfig returns the standard orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:   DefaultHistoryWindow,
		IdleTimeout:     DefaultIdleTimeout,
		RetryMaxTries:   2,
		RetryMaxElapsed: 10 * time.Second,
	}
}

// Orchestrator dispatches turns to the classifier, retriever, engine,
// scenario manager, and renderer, and owns the session store.
type Orchestrator struct {
	classifier classify.Classifier
	retriever  retrieval.Retriever
	renderer   render.Renderer
	engine     *engine.Engine
	scenarios  *scenario.Manager
	sessions   *SessionStore

	baseRules *rules.Set
	params    core.CompileParams
	cfg       Config
	logger    logr.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger logr.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithBusinessRules sets the rule set applied to fresh optimize builds.
func WithBusinessRules(rs *rules.Set) Option {
	return func(o *Orchestrator) { o.baseRules = rs }
}

// New creates an Orchestrator. All collaborating components are required.
func New(
	classifier classify.Classifier,
	retriever retrieval.Retriever,
	renderer render.Renderer,
	eng *engine.Engine,
	scenarios *scenario.Manager,
	params core.CompileParams,
	opts ...Option,
) (*Orchestrator, error) {
	if classifier == nil || retriever == nil || renderer == nil || eng == nil || scenarios == nil {
		return nil, fmt.Errorf("classifier, retriever, renderer, engine, and scenario manager must all be provided")
	}
	o := &Orchestrator{
		classifier: classifier,
		retriever:  retriever,
		renderer:   renderer,
		engine:     eng,
		scenarios:  scenarios,
		baseRules:  &rules.Set{},
		params:     params,
		cfg:        DefaultConfig(),
		logger:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sessions = NewSessionStore(o.cfg.IdleTimeout, o.cfg.HistoryWindow)
	return o, nil
}

// Sessions exposes the session store for lifecycle management (expiry loops,
// transport handlers).
func (o *Orchestrator) Sessions() *SessionStore { return o.sessions }

// HandleTurn processes one user turn for the given session. Backend failures
// and non-optimal solve outcomes are reported in the
// Response, not as errors; the error return is reserved for programming
// faults.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, text string) (*Response, error) {
	sess := o.sessions.GetOrCreate(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	resp := &Response{SessionID: sess.ID}
	enter := func(s State) {
		sess.State = s
		resp.Trace = append(resp.Trace, s)
	}
	enter(StateAwaitingIntent)

	snap := sess.snapshot()
	logger := o.logger.WithValues("session", sess.ID)

	intent, err := o.classifyWithRetry(ctx, text)
	if err != nil {
		// Never silently default an intent: report and ask again.
		logger.Error(err, "classifier unreachable")
		enter(StateError)
		resp.Intent = classify.IntentUnknown
		resp.Message = "I could not understand that request right now. Please try again."
		o.finishTurn(sess, text, resp)
		return resp, nil
	}
	resp.Intent = intent
	metrics.IncTurn(string(intent))
	logger.V(1).Info("turn classified", "intent", intent)

	switch intent {
	case classify.IntentRetrieve:
		o.handleRetrieve(ctx, sess, text, resp, enter)
	case classify.IntentOptimize:
		o.handleOptimize(ctx, sess, text, resp, enter, snap)
	case classify.IntentWhatIf:
		o.handleWhatIf(ctx, sess, text, resp, enter, snap)
	case classify.IntentVisualize:
		o.handleVisualize(ctx, sess, text, resp, enter)
	default:
		enter(StateAwaitingFollowup)
		resp.Message = "Try: 'retrieve fast-moving items', 'optimize inventory', " +
			"'visualize results', or 'what if demand +10% and capacity -5%'."
	}

	o.finishTurn(sess, text, resp)
	return resp, nil
}

// handleRetrieve returns a raw data slice without invoking the solver.
func (o *Orchestrator) handleRetrieve(ctx context.Context, sess *Session, text string, resp *Response, enter func(State)) {
	enter(StateCollectingInputs)
	f, err := o.fetchForTerm(ctx, text)
	if err != nil {
		enter(StateError)
		resp.Message = "I could not reach the data source. Please try again shortly."
		o.logger.Error(err, "retrieval failed", "session", sess.ID)
		return
	}
	enter(StatePresentingResult)
	resp.Frame = f
	resp.Message = fmt.Sprintf("Retrieved %d SKUs (snapshot %s).", len(f.Rows), f.Version)
}

// handleOptimize builds and solves a fresh model; on success the session's
// active base model is replaced.
func (o *Orchestrator) handleOptimize(ctx context.Context, sess *Session, text string, resp *Response, enter func(State), snap snapshot) {
	enter(StateCollectingInputs)
	f, err := o.fetchForTerm(ctx, text)
	if err != nil {
		enter(StateError)
		resp.Message = "I could not load the data needed to build a plan. Please try again shortly."
		o.logger.Error(err, "retrieval failed", "session", sess.ID)
		return
	}
	if len(f.Rows) == 0 {
		// Do not build a partial model; ask instead.
		resp.Message = "I found no matching SKUs to plan for. Which items should I include?"
		return
	}

	enter(StateBuildingModel)
	spec, err := o.engine.Build(f, o.baseRules, o.params)
	if err != nil {
		var refErr *rules.ReferenceError
		if errors.As(err, &refErr) {
			enter(StateAwaitingFollowup)
			resp.Message = fmt.Sprintf("A business rule is invalid: %v. Fix the rule and retry.", refErr)
			return
		}
		enter(StateError)
		resp.Message = "The model could not be built from the current inputs."
		o.logger.Error(err, "build failed", "session", sess.ID)
		return
	}

	sol, err := o.engine.Solve(ctx, spec)
	if err != nil {
		sess.restore(snap)
		enter(StateError)
		resp.Message = "Something went wrong while solving. Please try again."
		o.logger.Error(err, "solve failed", "session", sess.ID)
		return
	}
	if sol.Status == core.StatusSolverError {
		// System fault: roll back so no partial model becomes active.
		sess.restore(snap)
		enter(StateError)
		resp.Solution = sol
		resp.Message = "The solver could not complete in time. Please try again."
		return
	}

	enter(StatePresentingResult)
	sess.ActiveModel = spec
	sess.LastSolution = sol
	sess.ScenarioStack = nil
	resp.Solution = sol
	resp.Message = solveSummary(sol, spec)
}

// handleWhatIf re-runs the active base model under parsed deltas through the
// scenario manager.
func (o *Orchestrator) handleWhatIf(ctx context.Context, sess *Session, text string, resp *Response, enter func(State), snap snapshot) {
	if sess.ActiveModel == nil {
		enter(StateAwaitingFollowup)
		resp.Message = "There is no plan to adjust yet. Run an optimization first (" + ErrNoActiveModel.Error() + ")."
		return
	}
	enter(StateCollectingInputs)
	deltas, err := scenario.Parse(text)
	if err != nil {
		enter(StateAwaitingFollowup)
		resp.Message = fmt.Sprintf("I could not read that scenario: %v", err)
		return
	}

	enter(StateBuildingModel)
	sol, err := o.scenarios.Run(ctx, sess.ActiveModel, deltas)
	if err != nil {
		var deltaErr *scenario.DeltaError
		if errors.As(err, &deltaErr) {
			enter(StateAwaitingFollowup)
			resp.Message = fmt.Sprintf("That scenario is invalid: %v", deltaErr)
			return
		}
		sess.restore(snap)
		enter(StateError)
		resp.Message = "The scenario could not be evaluated."
		o.logger.Error(err, "scenario failed", "session", sess.ID)
		return
	}
	if sol.Status == core.StatusSolverError {
		sess.restore(snap)
		enter(StateError)
		resp.Solution = sol
		resp.Message = "The solver could not complete the scenario in time. Please try again."
		return
	}

	enter(StatePresentingResult)
	sess.ScenarioStack = append(sess.ScenarioStack, deltas)
	sess.LastSolution = sol
	resp.Solution = sol
	resp.Message = scenarioSummary(sol, deltas)
}

// handleVisualize forwards the most recent Solution to the renderer without
// re-solving.
func (o *Orchestrator) handleVisualize(ctx context.Context, sess *Session, text string, resp *Response, enter func(State)) {
	if sess.LastSolution == nil {
		enter(StateAwaitingFollowup)
		resp.Message = "There are no results to visualize yet. Run an optimization first."
		return
	}
	if sess.LastSolution.Status != core.StatusOptimal {
		enter(StateAwaitingFollowup)
		resp.Message = "The latest result has no feasible plan, so there is nothing to chart."
		return
	}
	kind := render.ChartOrders
	if strings.Contains(strings.ToLower(text), "coverage") {
		kind = render.ChartCoverage
	}
	result, err := o.renderer.Render(ctx, sess.LastSolution, kind)
	if err != nil {
		enter(StateError)
		resp.Message = "Chart rendering failed."
		o.logger.Error(err, "render failed", "session", sess.ID)
		return
	}
	enter(StatePresentingResult)
	resp.Render = result
	resp.Message = fmt.Sprintf("Chart saved: %s", result.FilePath)
}

// finishTurn appends the user and assistant turns and settles the resting
// state for the next turn.
func (o *Orchestrator) finishTurn(sess *Session, text string, resp *Response) {
	now := time.Now()
	sess.appendTurn(Turn{Role: "user", Text: text, Intent: resp.Intent, At: now}, o.cfg.HistoryWindow)
	sess.appendTurn(Turn{Role: "assistant", Text: resp.Message, At: now}, o.cfg.HistoryWindow)
	if sess.State == StatePresentingResult {
		sess.State = StateAwaitingFollowup
	}
	resp.State = sess.State
}

// classifyWithRetry calls the classifier, retrying once with backoff before
// giving up with a ClassificationError.
func (o *Orchestrator) classifyWithRetry(ctx context.Context, text string) (classify.Intent, error) {
	intent, err := backoff.Retry(ctx, func() (classify.Intent, error) {
		return o.classifier.Classify(ctx, text)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(o.cfg.RetryMaxTries),
		backoff.WithMaxElapsedTime(o.cfg.RetryMaxElapsed),
	)
	if err != nil {
		return classify.IntentUnknown, &classify.ClassificationError{Err: err}
	}
	return intent, nil
}

// fetchForTerm resolves the turn text to field specs and fetches the frame
// slice, retrying once with backoff.
func (o *Orchestrator) fetchForTerm(ctx context.Context, text string) (*frame.Frame, error) {
	return backoff.Retry(ctx, func() (*frame.Frame, error) {
		fields, err := o.retriever.ResolveFuzzyTerm(ctx, text)
		if err != nil {
			return nil, err
		}
		return o.retriever.Fetch(ctx, fields)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(o.cfg.RetryMaxTries),
		backoff.WithMaxElapsedTime(o.cfg.RetryMaxElapsed),
	)
}

// solveSummary renders a user-facing summary of a fresh solve.
func solveSummary(sol *core.Solution, spec *core.ModelSpec) string {
	switch sol.Status {
	case core.StatusOptimal:
		var ordered int
		for _, d := range sol.Decisions {
			if d.Ordered {
				ordered++
			}
		}
		return fmt.Sprintf("Optimization complete. Objective=%.2f, %d of %d SKUs ordered, capacity used %.1f.",
			sol.Objective, ordered, len(sol.Decisions), sol.CapacityUsed(spec.Frame))
	case core.StatusInfeasible:
		return "No feasible plan exists under the current constraints. Consider relaxing capacity or MOQ rules."
	case core.StatusUnbounded:
		return "The model is unbounded; please review cost inputs."
	default:
		return "The solver could not complete."
	}
}

// scenarioSummary renders a user-facing summary of a what-if run.
func scenarioSummary(sol *core.Solution, deltas []scenario.Delta) string {
	switch sol.Status {
	case core.StatusOptimal:
		return fmt.Sprintf("Scenario complete (%d adjustments). Objective=%.2f.", len(deltas), sol.Objective)
	case core.StatusInfeasible:
		return fmt.Sprintf("This scenario (%d adjustments) has no feasible plan.", len(deltas))
	case core.StatusUnbounded:
		return "This scenario is unbounded; please review cost inputs."
	default:
		return "The solver could not complete the scenario."
	}
}
