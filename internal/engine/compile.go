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
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/replenlab/replend/internal/frame"
	"github.com/replenlab/replend/internal/rules"
	"github.com/replenlab/replend/pkg/core"
	"github.com/replenlab/replend/pkg/solver"
)

// bigM links order quantities to their binary indicators. Order quantities in
// this domain are bounded far below this value.
const bigM = 1e6

// skuVars maps one SKU to its variable indices in the compiled problem.
// ind is -1 when the SKU has no order indicator.
type skuVars struct {
	qty, short, ind int
}

// compiled is the lowered form of a ModelSpec plus the index maps needed to
// read the solver's answer back into a Solution.
type compiled struct {
	problem *solver.Problem
	vars    map[string]skuVars
	skus    []string
}

// zValue returns the standard normal quantile for the service level, clamped
// to a sane range for degenerate configurations.
func zValue(serviceLevel float64) float64 {
	if serviceLevel <= 0 || serviceLevel >= 1 {
		return 0
	}
	n := distuv.Normal{Mu: 0, Sigma: 1}
	return n.Quantile(serviceLevel)
}

// safetyStock computes the safety-stock floor for one row: z · σ · sqrt(L/30),
// with the lead time taken from the supplier's lead_time_buffer rule when one
// exists.
func safetyStock(row frame.Row, rs *rules.Set, z float64) float64 {
	lead := row.LeadTimeDays
	if days, ok := rs.LeadTimeFor(row.Supplier); ok {
		lead = days
	}
	if lead < 0 {
		lead = 0
	}
	return z * row.DemandStd * math.Sqrt(lead/30.0)
}

// compile lowers a ModelSpec into a solver.Problem.
//
// Per SKU s:
//
//	q_s  order quantity        (continuous or integer, >= 0)
//	u_s  stockout shortfall    (continuous, >= 0)
//	y_s  order indicator       (binary; only with all-or-nothing MOQ or a
//	                            fixed ordering cost)
//
// Objective: min Σ (holding+transport)·q + orderingCost·y + penalty·u,
// plus the constant holding cost of stock already on hand. Targeted priority
// SKUs contribute no penalty term; their shortfall is capped by a hard
// constraint instead.
func compile(spec *core.ModelSpec) (*compiled, error) {
	f := spec.Frame
	rs := spec.Rules
	params := spec.Params
	z := zValue(params.ServiceLevel)

	p := &solver.Problem{}
	vars := make(map[string]skuVars, len(f.Rows))
	skus := make([]string, 0, len(f.Rows))

	qtyType := solver.Continuous
	if params.IntegerOrders {
		qtyType = solver.Integer
	}

	addVar := func(v solver.Variable, cost float64) int {
		p.Variables = append(p.Variables, v)
		p.Objective = append(p.Objective, cost)
		return len(p.Variables) - 1
	}

	for _, row := range f.Rows {
		sku := row.SKU
		skus = append(skus, sku)

		bounds, hasBounds := rs.BoundsFor(sku)
		needsIndicator := params.OrderingCost > 0 || (hasBounds && bounds.AllOrNothing)

		qLower := 0.0
		qUpper := math.Inf(1)
		if hasBounds {
			if bounds.MaxQty > 0 {
				qUpper = bounds.MaxQty
			}
			// Floor-mode MOQ is a plain lower bound; all-or-nothing MOQ is
			// enforced through the indicator linking constraints instead.
			if !bounds.AllOrNothing {
				qLower = bounds.MinQty
			}
		}

		holding := row.HoldingCost
		if holding == 0 {
			holding = params.HoldingCost
		}
		penalty := params.StockoutPenalty
		targeted := false
		var target float64
		if pr, ok := rs.PriorityFor(sku); ok {
			switch pr.Policy {
			case rules.PolicyPenalized:
				penalty *= pr.PenaltyMultiplier
			case rules.PolicyTargeted:
				targeted = true
				target = pr.ServiceTarget
				penalty = 0
			}
		}

		sv := skuVars{ind: -1}
		sv.qty = addVar(solver.Variable{
			Name:  fmt.Sprintf("qty[%s]", sku),
			Type:  qtyType,
			Lower: qLower,
			Upper: qUpper,
		}, holding+row.TransportCost)
		sv.short = addVar(solver.Variable{
			Name:  fmt.Sprintf("short[%s]", sku),
			Type:  solver.Continuous,
			Lower: 0,
			Upper: math.Inf(1),
		}, penalty)
		if needsIndicator {
			sv.ind = addVar(solver.Variable{
				Name:  fmt.Sprintf("ord[%s]", sku),
				Type:  solver.Binary,
				Lower: 0,
				Upper: 1,
			}, params.OrderingCost)
		}
		vars[sku] = sv

		// Holding cost of on-hand inventory is a constant, kept so objective
		// values line up with the reported plan cost.
		p.Offset += holding * row.StockOnHand

		ss := safetyStock(row, rs, z)
		// Shortfall definition: u >= ss - (soh + q - demand).
		p.Constraints = append(p.Constraints, solver.Constraint{
			Name:   fmt.Sprintf("safety[%s]", sku),
			Coeffs: map[int]float64{sv.qty: 1, sv.short: 1},
			Sense:  solver.GE,
			RHS:    ss - row.StockOnHand + row.DemandMean,
		})

		if targeted {
			// Hard service target: shortfall may not exceed the unserved
			// fraction of demand.
			p.Constraints = append(p.Constraints, solver.Constraint{
				Name:   fmt.Sprintf("service[%s]", sku),
				Coeffs: map[int]float64{sv.short: 1},
				Sense:  solver.LE,
				RHS:    (1 - target) * row.DemandMean,
			})
		}

		if sv.ind >= 0 {
			// q <= M·y: no quantity without an order.
			p.Constraints = append(p.Constraints, solver.Constraint{
				Name:   fmt.Sprintf("link[%s]", sku),
				Coeffs: map[int]float64{sv.qty: 1, sv.ind: -bigM},
				Sense:  solver.LE,
				RHS:    0,
			})
			if hasBounds && bounds.AllOrNothing && bounds.MinQty > 0 {
				// q >= moq·y: an order, once placed, meets the MOQ.
				p.Constraints = append(p.Constraints, solver.Constraint{
					Name:   fmt.Sprintf("moq[%s]", sku),
					Coeffs: map[int]float64{sv.qty: 1, sv.ind: -bounds.MinQty},
					Sense:  solver.GE,
					RHS:    0,
				})
			}
		}
	}

	// Capacity limits sum ordered volume per resource.
	for _, limit := range rs.Capacities {
		coeffs := make(map[int]float64)
		for _, row := range f.Rows {
			if row.Resource != limit.Resource || row.UnitVolume == 0 {
				continue
			}
			coeffs[vars[row.SKU].qty] = row.UnitVolume
		}
		p.Constraints = append(p.Constraints, solver.Constraint{
			Name:   fmt.Sprintf("capacity[%s]", limit.Resource),
			Coeffs: coeffs,
			Sense:  solver.LE,
			RHS:    limit.MaxUnits,
		})
	}

	return &compiled{problem: p, vars: vars, skus: skus}, nil
}
