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

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replenlab/replend/internal/frame"
	"github.com/replenlab/replend/internal/rules"
)

func testSpec(t *testing.T) *ModelSpec {
	t.Helper()
	f, err := frame.New("v1", []frame.Row{
		{SKU: "SKU-1", Supplier: "acme", Resource: "warehouse", DemandMean: 10, DemandStd: 2},
		{SKU: "SKU-2", Supplier: "acme", Resource: "warehouse", DemandMean: 20, DemandStd: 4},
	})
	require.NoError(t, err)
	rs := &rules.Set{
		Capacities: []rules.CapacityRule{{Resource: "warehouse", MaxUnits: 100}},
	}
	rs.Canonicalize()
	return &ModelSpec{
		Frame:  f,
		Rules:  rs,
		Params: CompileParams{ServiceLevel: 0.95, HoldingCost: 1, StockoutPenalty: 50},
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a := testSpec(t)
	b := testSpec(t)

	fpA := a.Fingerprint()
	assert.Equal(t, fpA, a.Fingerprint(), "repeated fingerprinting must be stable")
	assert.Equal(t, fpA, b.Fingerprint(), "identical specs must share a fingerprint")
	assert.Len(t, fpA, 16)
}

func TestFingerprintIgnoresRuleOrder(t *testing.T) {
	a := testSpec(t)
	b := testSpec(t)

	// Same rule content inserted in a different order, then canonicalized.
	b.Rules.Capacities = append(b.Rules.Capacities, rules.CapacityRule{Resource: "coldstore", MaxUnits: 10})
	a.Rules.Capacities = append([]rules.CapacityRule{{Resource: "coldstore", MaxUnits: 10}}, a.Rules.Capacities...)
	a.Rules.Canonicalize()
	b.Rules.Canonicalize()

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintChangesWithContent(t *testing.T) {
	base := testSpec(t)
	baseFP := base.Fingerprint()

	demand := testSpec(t)
	demand.Frame.Rows[0].DemandMean = 11
	assert.NotEqual(t, baseFP, demand.Fingerprint(), "demand change must change identity")

	params := testSpec(t)
	params.Params.ServiceLevel = 0.99
	assert.NotEqual(t, baseFP, params.Fingerprint(), "parameter change must change identity")

	rule := testSpec(t)
	rule.Rules.Capacities[0].MaxUnits = 99
	assert.NotEqual(t, baseFP, rule.Fingerprint(), "rule change must change identity")
}

func TestCloneIsDeep(t *testing.T) {
	orig := testSpec(t)
	fp := orig.Fingerprint()

	clone := orig.Clone()
	clone.Frame.Rows[0].DemandMean = 999
	clone.Rules.Capacities[0].MaxUnits = 1

	assert.Equal(t, fp, orig.Fingerprint(), "mutating a clone must not affect the original")
	assert.NotEqual(t, fp, clone.Fingerprint())
}

func TestSolutionDecision(t *testing.T) {
	sol := &Solution{
		Status: StatusOptimal,
		Decisions: []SKUDecision{
			{SKU: "SKU-1", OrderQty: 10, Ordered: true},
			{SKU: "SKU-2", OrderQty: 0},
		},
	}

	d, ok := sol.Decision("SKU-1")
	require.True(t, ok)
	assert.Equal(t, 10.0, d.OrderQty)

	_, ok = sol.Decision("SKU-9")
	assert.False(t, ok)
}

func TestSolutionCapacityUsed(t *testing.T) {
	f, err := frame.New("v1", []frame.Row{
		{SKU: "SKU-1", UnitVolume: 2},
		{SKU: "SKU-2", UnitVolume: 0.5},
	})
	require.NoError(t, err)
	sol := &Solution{
		Status: StatusOptimal,
		Decisions: []SKUDecision{
			{SKU: "SKU-1", OrderQty: 10},
			{SKU: "SKU-2", OrderQty: 4},
		},
	}
	assert.InDelta(t, 22.0, sol.CapacityUsed(f), 1e-9)
}
