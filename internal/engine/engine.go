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

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/replenlab/replend/internal/frame"
	"github.com/replenlab/replend/internal/metrics"
	"github.com/replenlab/replend/internal/rules"
	"github.com/replenlab/replend/pkg/core"
	"github.com/replenlab/replend/pkg/solver"
)

// DefaultSolveTimeout bounds a single solver invocation.
const DefaultSolveTimeout = 30 * time.Second

// Engine compiles frames and business rules into ModelSpecs and solves them.
type Engine struct {
	solver  solver.Solver
	logger  logr.Logger
	timeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger logr.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSolveTimeout overrides the per-solve timeout.
func WithSolveTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// New creates an Engine backed by the given solver.
func New(s solver.Solver, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("solver cannot be nil")
	}
	e := &Engine{
		solver:  s,
		logger:  logr.Discard(),
		timeout: DefaultSolveTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Build validates the rule set against the frame and produces a canonical,
// immutable ModelSpec. Functionally identical inputs yield bit-identical
// specs regardless of rule insertion order.
func (e *Engine) Build(f *frame.Frame, rs *rules.Set, params core.CompileParams) (*core.ModelSpec, error) {
	if f == nil {
		return nil, fmt.Errorf("frame cannot be nil")
	}
	if rs == nil {
		rs = &rules.Set{}
	}
	if err := rs.Validate(f); err != nil {
		return nil, err
	}
	canonical := rs.Clone()
	canonical.Canonicalize()
	return &core.ModelSpec{
		Frame:  f.Clone(),
		Rules:  canonical,
		Params: params,
	}, nil
}

// Solve compiles the spec and invokes the solver.
//
// Infeasible and unbounded are reported in the Solution status with a nil
// error — the caller must be able to present "no feasible plan" to the user.
// Solver faults (timeout, crash, node-budget exhaustion) come back as
// StatusSolverError and are logged as system errors.
func (e *Engine) Solve(ctx context.Context, spec *core.ModelSpec) (*core.Solution, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec cannot be nil")
	}
	fp := spec.Fingerprint()

	c, err := compile(spec)
	if err != nil {
		return nil, fmt.Errorf("compile model %s: %w", fp, err)
	}

	solveCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := e.solver.Solve(solveCtx, c.problem)
	metrics.ObserveSolveDuration(time.Since(start))
	if err != nil {
		e.logger.Error(err, "solver fault", "model", fp)
		metrics.IncSolve(string(core.StatusSolverError))
		return &core.Solution{
			Status:          core.StatusSolverError,
			Diagnostic:      err.Error(),
			SpecFingerprint: fp,
		}, nil
	}

	sol := e.toSolution(c, result, fp)
	metrics.IncSolve(string(sol.Status))
	e.logger.V(1).Info("solve complete",
		"model", fp,
		"status", sol.Status,
		"objective", sol.Objective,
		"variables", len(c.problem.Variables),
		"constraints", len(c.problem.Constraints),
		"duration", time.Since(start))
	return sol, nil
}

// toSolution reads the solver result back through the variable index maps.
func (e *Engine) toSolution(c *compiled, result *solver.Result, fp string) *core.Solution {
	switch result.Status {
	case solver.Infeasible:
		return &core.Solution{
			Status:          core.StatusInfeasible,
			Diagnostic:      "no feasible plan under the current constraints",
			SpecFingerprint: fp,
		}
	case solver.Unbounded:
		return &core.Solution{
			Status:          core.StatusUnbounded,
			Diagnostic:      "objective is unbounded; check cost inputs",
			SpecFingerprint: fp,
		}
	case solver.Failed:
		return &core.Solution{
			Status:          core.StatusSolverError,
			Diagnostic:      "solver failed",
			SpecFingerprint: fp,
		}
	}

	decisions := make([]core.SKUDecision, 0, len(c.skus))
	for _, sku := range c.skus {
		sv := c.vars[sku]
		d := core.SKUDecision{
			SKU:       sku,
			OrderQty:  result.X[sv.qty],
			Shortfall: result.X[sv.short],
		}
		if sv.ind >= 0 {
			d.Ordered = result.X[sv.ind] > 0.5
		} else {
			d.Ordered = d.OrderQty > 0
		}
		decisions = append(decisions, d)
	}

	activities := make([]core.ConstraintActivity, len(result.Activities))
	for i, a := range result.Activities {
		activities[i] = core.ConstraintActivity{Name: a.Name, Slack: a.Slack, Binding: a.Binding}
	}

	return &core.Solution{
		Status:          core.StatusOptimal,
		Objective:       result.Objective,
		Decisions:       decisions,
		Constraints:     activities,
		SpecFingerprint: fp,
	}
}
