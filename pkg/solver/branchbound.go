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
	"context"
	"fmt"
	"math"
)

// intTol is the distance from an integer below which a relaxation value is
// accepted as integral.
const intTol = 1e-6

// Solve implements the Solver interface.
func (s *SimplexSolver) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid problem: %w", err)
	}
	lower, upper := baseBounds(p)

	if !p.IsMixedInteger() {
		status, obj, x, err := solveRelaxation(p, lower, upper)
		if err != nil {
			return nil, fmt.Errorf("simplex failed: %w", err)
		}
		return s.assemble(p, status, obj, x), nil
	}
	return s.branchAndBound(ctx, p, lower, upper)
}

// node is one subproblem in the branch-and-bound tree, defined by tightened
// variable bounds.
type node struct {
	lower, upper []float64
}

func (s *SimplexSolver) branchAndBound(ctx context.Context, p *Problem, lower, upper []float64) (*Result, error) {
	maxNodes := s.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	bestObj := math.Inf(1)
	var bestX []float64
	explored := 0
	stack := []node{{lower: lower, upper: upper}}
	root := true
	rootStatus := lpInfeasible

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("branch and bound cancelled after %d nodes: %w", explored, err)
		}
		if explored >= maxNodes {
			return nil, fmt.Errorf("branch and bound node budget %d exhausted", maxNodes)
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		explored++

		status, obj, x, err := solveRelaxation(p, nd.lower, nd.upper)
		if err != nil {
			return nil, fmt.Errorf("simplex failed at node %d: %w", explored, err)
		}
		if root {
			root = false
			rootStatus = status
			if status == lpUnbounded {
				return s.assemble(p, lpUnbounded, 0, nil), nil
			}
		}
		if status != lpOptimal {
			continue
		}
		// Bound: the relaxation is a lower bound on any integer completion.
		if obj >= bestObj-1e-9 {
			continue
		}

		branchVar := -1
		for i, v := range p.Variables {
			if v.Type == Continuous {
				continue
			}
			if frac := x[i] - math.Floor(x[i]); frac > intTol && frac < 1-intTol {
				branchVar = i
				break
			}
		}
		if branchVar < 0 {
			bestObj = obj
			bestX = make([]float64, len(x))
			copy(bestX, x)
			continue
		}

		down := node{lower: cloneBounds(nd.lower), upper: cloneBounds(nd.upper)}
		down.upper[branchVar] = math.Floor(x[branchVar])
		up := node{lower: cloneBounds(nd.lower), upper: cloneBounds(nd.upper)}
		up.lower[branchVar] = math.Ceil(x[branchVar])
		// Explore the floor branch first for deterministic search order.
		stack = append(stack, up, down)
	}

	if bestX == nil {
		if rootStatus == lpUnbounded {
			return s.assemble(p, lpUnbounded, 0, nil), nil
		}
		return s.assemble(p, lpInfeasible, 0, nil), nil
	}
	for i, v := range p.Variables {
		if v.Type != Continuous {
			bestX[i] = math.Round(bestX[i])
		}
	}
	return s.assemble(p, lpOptimal, bestObj, bestX), nil
}

func cloneBounds(b []float64) []float64 {
	out := make([]float64, len(b))
	copy(out, b)
	return out
}

// assemble converts an internal LP outcome into a Result.
func (s *SimplexSolver) assemble(p *Problem, status lpStatus, obj float64, x []float64) *Result {
	switch status {
	case lpInfeasible:
		return &Result{Status: Infeasible}
	case lpUnbounded:
		return &Result{Status: Unbounded}
	}
	// Clean tiny numerical noise around zero.
	for i := range x {
		if math.Abs(x[i]) < intTol {
			x[i] = 0
		}
	}
	return &Result{
		Status:     Optimal,
		Objective:  obj + p.Offset,
		X:          x,
		Activities: p.activities(x, bindingTol),
	}
}
