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

// Package core defines the immutable values exchanged between the orchestrator,
// the modeling engine, and the scenario manager: ModelSpec (a compiled problem
// instance) and Solution (a solve outcome). Both are shared by value or by
// reference to an immutable snapshot and never mutated in place.
package core

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/replenlab/replend/internal/frame"
	"github.com/replenlab/replend/internal/rules"
)

// CompileParams are the engine parameters stamped into a ModelSpec at build
// time. They participate in fingerprinting: two builds with different
// parameters are different models.
type CompileParams struct {
	// ServiceLevel is the target cycle service level used for safety stock
	// (z-value), e.g. 0.95.
	ServiceLevel float64 `json:"serviceLevel" yaml:"serviceLevel"`

	// HoldingCost is the default per-unit holding cost for rows that do not
	// carry their own.
	HoldingCost float64 `json:"holdingCost" yaml:"holdingCost"`

	// StockoutPenalty is the base per-unit stockout penalty before priority
	// scaling.
	StockoutPenalty float64 `json:"stockoutPenalty" yaml:"stockoutPenalty"`

	// OrderingCost is the fixed cost charged per placed order. Zero disables
	// the order-indicator variables unless an all-or-nothing MOQ needs them.
	OrderingCost float64 `json:"orderingCost" yaml:"orderingCost"`

	// IntegerOrders forces order quantities to integral values.
	IntegerOrders bool `json:"integerOrders,omitempty" yaml:"integerOrders,omitempty"`
}

// ModelSpec is the immutable compiled description of one optimization problem
// instance: a frame snapshot plus a canonicalized rule set and the compile
// parameters. Two ModelSpecs are equal iff their canonical forms are equal.
type ModelSpec struct {
	Frame  *frame.Frame  `json:"frame"`
	Rules  *rules.Set    `json:"rules"`
	Params CompileParams `json:"params"`
}

// Fingerprint returns the deterministic identity of the spec: an xxhash64 over
// the canonical JSON encoding. It depends only on the spec's value, never on
// wall-clock time or solver state, so it is stable across process restarts.
func (m *ModelSpec) Fingerprint() string {
	raw, err := json.Marshal(m)
	if err != nil {
		// A ModelSpec is plain data; marshal can only fail on corruption.
		panic(fmt.Sprintf("modelspec: marshal: %v", err))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}

// Clone returns a deep copy. Scenario deltas operate on clones.
func (m *ModelSpec) Clone() *ModelSpec {
	return &ModelSpec{
		Frame:  m.Frame.Clone(),
		Rules:  m.Rules.Clone(),
		Params: m.Params,
	}
}

// SolveStatus is the outcome classification of a solve.
type SolveStatus string

const (
	// StatusOptimal means an optimal plan was found; the objective is defined.
	StatusOptimal SolveStatus = "optimal"

	// StatusInfeasible means no plan satisfies the constraint set. This is a
	// normal outcome reported to the user, not a fault.
	StatusInfeasible SolveStatus = "infeasible"

	// StatusUnbounded means the objective can decrease without limit,
	// indicating a modeling defect in the inputs.
	StatusUnbounded SolveStatus = "unbounded"

	// StatusSolverError means the solver timed out or crashed. This is the
	// only status treated as a system fault.
	StatusSolverError SolveStatus = "solver_error"
)

// SKUDecision holds the solved values of one SKU's decision variables.
type SKUDecision struct {
	// SKU is the stock-keeping unit.
	SKU string `json:"sku"`

	// OrderQty is the solved order quantity.
	OrderQty float64 `json:"orderQty"`

	// Ordered reports whether an order is placed (indicator variable, when
	// present; otherwise OrderQty > 0).
	Ordered bool `json:"ordered"`

	// Shortfall is the solved stockout/safety shortfall in units.
	Shortfall float64 `json:"shortfall"`
}

// ConstraintActivity summarizes one constraint after a solve, for explaining
// why the plan looks the way it does.
type ConstraintActivity struct {
	// Name identifies the constraint, e.g. "capacity[warehouse]".
	Name string `json:"name"`

	// Slack is the unused headroom; ~0 for binding constraints.
	Slack float64 `json:"slack"`

	// Binding reports whether the constraint is active at the optimum.
	Binding bool `json:"binding"`
}

// Solution is the structured result of solving a ModelSpec.
type Solution struct {
	// Status classifies the outcome.
	Status SolveStatus `json:"status"`

	// Objective is the optimal objective value. Defined only when Status is
	// StatusOptimal.
	Objective float64 `json:"objective,omitempty"`

	// Decisions are the per-SKU variable values, sorted by SKU. Empty unless
	// Status is StatusOptimal.
	Decisions []SKUDecision `json:"decisions,omitempty"`

	// Constraints is the binding/slack summary. Empty unless Status is
	// StatusOptimal.
	Constraints []ConstraintActivity `json:"constraints,omitempty"`

	// Diagnostic carries a short human-readable explanation for
	// non-optimal outcomes.
	Diagnostic string `json:"diagnostic,omitempty"`

	// SpecFingerprint is the fingerprint of the solved ModelSpec.
	SpecFingerprint string `json:"specFingerprint"`
}

// Decision returns the decision for a SKU, if present.
func (s *Solution) Decision(sku string) (SKUDecision, bool) {
	for _, d := range s.Decisions {
		if d.SKU == sku {
			return d, true
		}
	}
	return SKUDecision{}, false
}

// CapacityUsed sums ordered volume against the given frame, for reporting.
func (s *Solution) CapacityUsed(f *frame.Frame) float64 {
	var used float64
	for _, d := range s.Decisions {
		if row, ok := f.Lookup(d.SKU); ok {
			used += row.UnitVolume * d.OrderQty
		}
	}
	return used
}
