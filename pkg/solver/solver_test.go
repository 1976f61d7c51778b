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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactory(t *testing.T) {
	s, err := New(SimplexStrategy)
	require.NoError(t, err)
	assert.IsType(t, &SimplexSolver{}, s)

	_, err = New(Strategy(99))
	assert.Error(t, err)
}

func TestSolveLinearProgram(t *testing.T) {
	// min 2x + 3y  s.t.  x + y >= 10, x <= 4, x,y >= 0.
	// Optimum: x = 4, y = 6, objective 26.
	p := &Problem{
		Variables: []Variable{
			{Name: "x", Type: Continuous, Lower: 0, Upper: 4},
			{Name: "y", Type: Continuous, Lower: 0, Upper: math.Inf(1)},
		},
		Constraints: []Constraint{
			{Name: "demand", Coeffs: map[int]float64{0: 1, 1: 1}, Sense: GE, RHS: 10},
		},
		Objective: []float64{2, 3},
	}

	res, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, 26.0, res.Objective, 1e-6)
	assert.InDelta(t, 4.0, res.X[0], 1e-6)
	assert.InDelta(t, 6.0, res.X[1], 1e-6)

	require.Len(t, res.Activities, 1)
	assert.Equal(t, "demand", res.Activities[0].Name)
	assert.True(t, res.Activities[0].Binding, "demand constraint must be binding at the optimum")
}

func TestSolveAppliesOffset(t *testing.T) {
	p := &Problem{
		Variables: []Variable{{Name: "x", Type: Continuous, Lower: 0, Upper: math.Inf(1)}},
		Constraints: []Constraint{
			{Name: "floor", Coeffs: map[int]float64{0: 1}, Sense: GE, RHS: 5},
		},
		Objective: []float64{1},
		Offset:    100,
	}

	res, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, 105.0, res.Objective, 1e-6)
}

func TestSolveInfeasible(t *testing.T) {
	// x <= 2 (bound) conflicts with x >= 5 (constraint).
	p := &Problem{
		Variables: []Variable{{Name: "x", Type: Continuous, Lower: 0, Upper: 2}},
		Constraints: []Constraint{
			{Name: "floor", Coeffs: map[int]float64{0: 1}, Sense: GE, RHS: 5},
		},
		Objective: []float64{1},
	}

	res, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
	assert.Nil(t, res.X)
}

func TestSolveUnbounded(t *testing.T) {
	// min -x with x unbounded above.
	p := &Problem{
		Variables: []Variable{{Name: "x", Type: Continuous, Lower: 0, Upper: math.Inf(1)}},
		Objective: []float64{-1},
	}

	res, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Unbounded, res.Status)
}

func TestSolveIntegerProgram(t *testing.T) {
	// min x  s.t.  x >= 2.5, x integer. The relaxation gives 2.5; branch and
	// bound must land on 3.
	p := &Problem{
		Variables: []Variable{{Name: "x", Type: Integer, Lower: 0, Upper: math.Inf(1)}},
		Constraints: []Constraint{
			{Name: "floor", Coeffs: map[int]float64{0: 1}, Sense: GE, RHS: 2.5},
		},
		Objective: []float64{1},
	}

	res, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, 3.0, res.Objective, 1e-6)
	assert.InDelta(t, 3.0, res.X[0], 1e-9)
}

func TestSolveAllOrNothingOrder(t *testing.T) {
	// Minimum-order-quantity structure: q is zero or at least 30.
	//
	//	min q + 5y  s.t.  q >= 10, q - 100y <= 0, q - 30y >= 0, y binary.
	//
	// y = 0 forces q <= 0, contradicting q >= 10, so the order is placed and
	// lands exactly on the MOQ: q = 30, y = 1, objective 35.
	p := &Problem{
		Variables: []Variable{
			{Name: "q", Type: Continuous, Lower: 0, Upper: math.Inf(1)},
			{Name: "y", Type: Binary, Lower: 0, Upper: 1},
		},
		Constraints: []Constraint{
			{Name: "demand", Coeffs: map[int]float64{0: 1}, Sense: GE, RHS: 10},
			{Name: "link", Coeffs: map[int]float64{0: 1, 1: -100}, Sense: LE, RHS: 0},
			{Name: "moq", Coeffs: map[int]float64{0: 1, 1: -30}, Sense: GE, RHS: 0},
		},
		Objective: []float64{1, 5},
	}

	res, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, 35.0, res.Objective, 1e-6)
	assert.InDelta(t, 30.0, res.X[0], 1e-6)
	assert.InDelta(t, 1.0, res.X[1], 1e-9)
}

func TestSolveMixedIntegerInfeasible(t *testing.T) {
	// Binary y cannot satisfy 2y >= 3.
	p := &Problem{
		Variables: []Variable{{Name: "y", Type: Binary, Lower: 0, Upper: 1}},
		Constraints: []Constraint{
			{Name: "impossible", Coeffs: map[int]float64{0: 2}, Sense: GE, RHS: 3},
		},
		Objective: []float64{1},
	}

	res, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
}

func TestSolveRespectsCancellation(t *testing.T) {
	p := &Problem{
		Variables: []Variable{{Name: "x", Type: Integer, Lower: 0, Upper: 10}},
		Constraints: []Constraint{
			{Name: "floor", Coeffs: map[int]float64{0: 1}, Sense: GE, RHS: 1.5},
		},
		Objective: []float64{1},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimplexSolver().Solve(ctx, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolveNodeBudget(t *testing.T) {
	p := &Problem{
		Variables: []Variable{
			{Name: "a", Type: Integer, Lower: 0, Upper: 10},
			{Name: "b", Type: Integer, Lower: 0, Upper: 10},
		},
		Constraints: []Constraint{
			{Name: "mix", Coeffs: map[int]float64{0: 2, 1: 3}, Sense: GE, RHS: 12.5},
		},
		Objective: []float64{1, 1},
	}
	s := &SimplexSolver{MaxNodes: 1}

	_, err := s.Solve(context.Background(), p)
	assert.Error(t, err, "an exhausted node budget is a solver fault, not a status")
}

func TestValidateRejectsMalformedProblems(t *testing.T) {
	tests := []struct {
		name string
		p    *Problem
	}{
		{
			name: "Test case 1: objective length mismatch",
			p: &Problem{
				Variables: []Variable{{Name: "x", Lower: 0, Upper: 1}},
				Objective: []float64{1, 2},
			},
		},
		{
			name: "Test case 2: inverted bounds",
			p: &Problem{
				Variables: []Variable{{Name: "x", Lower: 5, Upper: 1}},
				Objective: []float64{1},
			},
		},
		{
			name: "Test case 3: constraint references missing variable",
			p: &Problem{
				Variables: []Variable{{Name: "x", Lower: 0, Upper: 1}},
				Constraints: []Constraint{
					{Name: "bad", Coeffs: map[int]float64{7: 1}, Sense: LE, RHS: 0},
				},
				Objective: []float64{1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSimplexSolver().Solve(context.Background(), tt.p)
			assert.Error(t, err)
		})
	}
}
