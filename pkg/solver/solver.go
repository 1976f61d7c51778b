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

// Package solver implements the optimization backends for replend.
//
// The solver consumes a Problem — decision variables, linear constraints, and
// a linear objective — and produces a Result with a status, optimal point, and
// per-constraint activity. Linear programs are solved with gonum's simplex;
// integer and binary variables are handled by branch and bound on top of the
// LP relaxation.
//
// The solver is designed to be:
//   - Deterministic: same inputs produce same outputs
//   - Cancellable: the context deadline bounds branch-and-bound search
//   - Extensible: interface-based for alternative backends
package solver

import (
	"context"
	"fmt"
	"math"
)

// VarType classifies a decision variable.
type VarType int

const (
	// Continuous variables take any value within their bounds.
	Continuous VarType = iota
	// Integer variables are restricted to integral values.
	Integer
	// Binary variables take values in {0, 1}.
	Binary
)

// Variable is one decision variable with its domain.
type Variable struct {
	// Name identifies the variable, e.g. "qty[SKU-1]".
	Name string

	// Type is the variable's domain class.
	Type VarType

	// Lower and Upper bound the variable. Upper may be math.Inf(1).
	Lower, Upper float64
}

// Sense is the relation of a linear constraint.
type Sense int

const (
	LE Sense = iota // left-hand side <= RHS
	GE              // left-hand side >= RHS
	EQ              // left-hand side == RHS
)

// Constraint is one linear constraint over the problem's variables.
type Constraint struct {
	// Name identifies the constraint for the activity summary.
	Name string

	// Coeffs maps variable index to coefficient. Absent indices are zero.
	Coeffs map[int]float64

	// Sense relates the linear form to RHS.
	Sense Sense

	// RHS is the constraint's right-hand side.
	RHS float64
}

// Problem is a linear or mixed-integer program in minimization form.
type Problem struct {
	// Variables are the decision variables; constraint and objective
	// coefficients refer to them by index.
	Variables []Variable

	// Constraints are the linear constraints.
	Constraints []Constraint

	// Objective holds the cost coefficient per variable (minimized).
	Objective []float64

	// Offset is a constant added to the objective value.
	Offset float64
}

// Status is the solver's outcome classification.
type Status int

const (
	// Optimal means an optimal point was found.
	Optimal Status = iota
	// Infeasible means no point satisfies all constraints.
	Infeasible
	// Unbounded means the objective decreases without limit.
	Unbounded
	// Failed means the solver could not complete (timeout, numerical failure).
	Failed
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	default:
		return "failed"
	}
}

// Activity is the post-solve state of one constraint.
type Activity struct {
	// Name is the constraint name.
	Name string

	// Slack is the remaining headroom (non-negative at a feasible point).
	Slack float64

	// Binding reports whether the constraint is tight at the optimum.
	Binding bool
}

// Result is the outcome of a solve.
type Result struct {
	// Status classifies the outcome.
	Status Status

	// Objective is the optimal objective value (Optimal only).
	Objective float64

	// X holds the optimal variable values, indexed like Problem.Variables
	// (Optimal only).
	X []float64

	// Activities summarizes constraint slack (Optimal only).
	Activities []Activity
}

// Solver solves a compiled problem. Implementations must support
// linear and mixed-integer programs with the variable and constraint shapes
// produced by the modeling engine.
type Solver interface {
	// Solve computes the optimal point of the problem. Infeasible and
	// unbounded outcomes are reported in the Result status; the error return
	// is reserved for solver faults (cancellation, numerical failure).
	Solve(ctx context.Context, p *Problem) (*Result, error)
}

// Strategy selects a solver implementation.
type Strategy int

const (
	// SimplexStrategy is the gonum simplex with branch and bound.
	SimplexStrategy Strategy = iota
)

// New is a factory that creates a Solver for the given strategy.
func New(strategy Strategy) (Solver, error) {
	switch strategy {
	case SimplexStrategy:
		return NewSimplexSolver(), nil
	default:
		return nil, fmt.Errorf("unsupported solver strategy: %v", strategy)
	}
}

// Validate checks the problem for structural consistency.
func (p *Problem) Validate() error {
	n := len(p.Variables)
	if len(p.Objective) != n {
		return fmt.Errorf("objective has %d coefficients for %d variables", len(p.Objective), n)
	}
	for i, v := range p.Variables {
		if v.Lower > v.Upper {
			return fmt.Errorf("variable %q: lower bound %v above upper bound %v", v.Name, v.Lower, v.Upper)
		}
		if v.Type == Binary && (v.Lower < 0 || v.Upper > 1) {
			return fmt.Errorf("variable %q: binary bounds must lie in [0,1]", v.Name)
		}
		_ = i
	}
	for _, c := range p.Constraints {
		for idx := range c.Coeffs {
			if idx < 0 || idx >= n {
				return fmt.Errorf("constraint %q references variable index %d out of range", c.Name, idx)
			}
		}
	}
	return nil
}

// IsMixedInteger reports whether the problem has integer or binary variables.
func (p *Problem) IsMixedInteger() bool {
	for _, v := range p.Variables {
		if v.Type != Continuous {
			return true
		}
	}
	return false
}

// activities computes the constraint activity summary at point x.
func (p *Problem) activities(x []float64, tol float64) []Activity {
	out := make([]Activity, 0, len(p.Constraints))
	for _, c := range p.Constraints {
		var lhs float64
		for idx, coeff := range c.Coeffs {
			lhs += coeff * x[idx]
		}
		var slack float64
		switch c.Sense {
		case LE:
			slack = c.RHS - lhs
		case GE:
			slack = lhs - c.RHS
		case EQ:
			slack = 0
		}
		if math.Abs(slack) < tol {
			slack = 0
		}
		out = append(out, Activity{Name: c.Name, Slack: slack, Binding: slack <= tol})
	}
	return out
}
