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

package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	// simplexTol is the optimality tolerance handed to the simplex method.
	simplexTol = 1e-10

	// bindingTol is the slack threshold below which a constraint is
	// reported as binding.
	bindingTol = 1e-6
)

// SimplexSolver solves linear programs with gonum's simplex method and
// mixed-integer programs by branch and bound over the LP relaxation.
type SimplexSolver struct {
	// MaxNodes bounds the branch-and-bound search tree.
	MaxNodes int
}

// DefaultMaxNodes is the default branch-and-bound node budget.
const DefaultMaxNodes = 50000

// NewSimplexSolver returns a SimplexSolver with default settings.
func NewSimplexSolver() *SimplexSolver {
	return &SimplexSolver{MaxNodes: DefaultMaxNodes}
}

// lpStatus is the internal outcome of one LP relaxation solve.
type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

// solveRelaxation solves the LP given by p with the variable bounds replaced
// by lower/upper. The general form (inequalities + equalities + bounds) is
// converted to standard form and handed to the simplex method.
func solveRelaxation(p *Problem, lower, upper []float64) (lpStatus, float64, []float64, error) {
	n := len(p.Variables)
	c := make([]float64, n)
	copy(c, p.Objective)

	var ineqRows, eqRows [][]float64
	var h, b []float64

	row := func(coeffs map[int]float64, negate bool) []float64 {
		r := make([]float64, n)
		for idx, coeff := range coeffs {
			if negate {
				r[idx] = -coeff
			} else {
				r[idx] = coeff
			}
		}
		return r
	}

	for _, con := range p.Constraints {
		switch con.Sense {
		case LE:
			ineqRows = append(ineqRows, row(con.Coeffs, false))
			h = append(h, con.RHS)
		case GE:
			// a·x >= rhs  ==>  -a·x <= -rhs
			ineqRows = append(ineqRows, row(con.Coeffs, true))
			h = append(h, -con.RHS)
		case EQ:
			eqRows = append(eqRows, row(con.Coeffs, false))
			b = append(b, con.RHS)
		}
	}

	// Variable bounds become inequality rows; Convert treats variables as free.
	for i := 0; i < n; i++ {
		if !math.IsInf(lower[i], -1) {
			r := make([]float64, n)
			r[i] = -1
			ineqRows = append(ineqRows, r)
			h = append(h, -lower[i])
		}
		if !math.IsInf(upper[i], 1) {
			r := make([]float64, n)
			r[i] = 1
			ineqRows = append(ineqRows, r)
			h = append(h, upper[i])
		}
	}

	var g mat.Matrix
	if len(ineqRows) > 0 {
		data := make([]float64, 0, len(ineqRows)*n)
		for _, r := range ineqRows {
			data = append(data, r...)
		}
		g = mat.NewDense(len(ineqRows), n, data)
	}
	var a mat.Matrix
	if len(eqRows) > 0 {
		data := make([]float64, 0, len(eqRows)*n)
		for _, r := range eqRows {
			data = append(data, r...)
		}
		a = mat.NewDense(len(eqRows), n, data)
	}

	cNew, aNew, bNew := lp.Convert(c, g, h, a, b)
	optF, optX, err := lp.Simplex(cNew, aNew, bNew, simplexTol, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return lpInfeasible, 0, nil, nil
		case errors.Is(err, lp.ErrUnbounded):
			return lpUnbounded, 0, nil, nil
		default:
			return lpInfeasible, 0, nil, err
		}
	}

	// Convert splits each free variable into positive and negative parts:
	// x_i = xNew_i - xNew_{n+i}.
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = optX[i] - optX[n+i]
	}
	return lpOptimal, optF, x, nil
}

// baseBounds extracts the variable bounds declared on the problem.
func baseBounds(p *Problem) (lower, upper []float64) {
	n := len(p.Variables)
	lower = make([]float64, n)
	upper = make([]float64, n)
	for i, v := range p.Variables {
		lower[i] = v.Lower
		upper[i] = v.Upper
	}
	return lower, upper
}
