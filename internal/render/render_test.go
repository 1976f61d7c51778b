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

package render

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replenlab/replend/pkg/core"
)

func optimalSolution() *core.Solution {
	return &core.Solution{
		Status:    core.StatusOptimal,
		Objective: 100,
		Decisions: []core.SKUDecision{
			{SKU: "SKU-1", OrderQty: 10, Ordered: true},
			{SKU: "SKU-2", OrderQty: 0, Shortfall: 5},
		},
		SpecFingerprint: "deadbeefdeadbeef",
	}
}

func TestRenderOrdersChart(t *testing.T) {
	r := NewFileRenderer(t.TempDir())

	result, err := r.Render(context.Background(), optimalSolution(), ChartOrders)
	require.NoError(t, err)

	raw, err := os.ReadFile(result.FilePath)
	require.NoError(t, err)
	assert.JSONEq(t, string(result.SpecJSON), string(raw))

	var spec struct {
		Kind   string `json:"kind"`
		Series []struct {
			Label string  `json:"label"`
			Value float64 `json:"value"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal(raw, &spec))
	assert.Equal(t, "orders", spec.Kind)
	require.Len(t, spec.Series, 2)
	assert.Equal(t, "SKU-1", spec.Series[0].Label)
	assert.Equal(t, 10.0, spec.Series[0].Value)
}

func TestRenderCoverageChartCarriesShortfall(t *testing.T) {
	r := NewFileRenderer(t.TempDir())

	result, err := r.Render(context.Background(), optimalSolution(), ChartCoverage)
	require.NoError(t, err)

	var spec struct {
		Series []struct {
			Label string  `json:"label"`
			Extra float64 `json:"extra"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal(result.SpecJSON, &spec))
	require.Len(t, spec.Series, 2)
	assert.Equal(t, 5.0, spec.Series[1].Extra)
}

func TestRenderFilenameIncludesFingerprint(t *testing.T) {
	r := NewFileRenderer(t.TempDir())
	result, err := r.Render(context.Background(), optimalSolution(), ChartOrders)
	require.NoError(t, err)
	assert.Contains(t, result.FilePath, "deadbeefdeadbeef")
}

func TestRenderRejectsNonOptimalSolutions(t *testing.T) {
	r := NewFileRenderer(t.TempDir())

	_, err := r.Render(context.Background(), &core.Solution{Status: core.StatusInfeasible}, ChartOrders)
	assert.Error(t, err)

	_, err = r.Render(context.Background(), nil, ChartOrders)
	assert.Error(t, err)
}

func TestRenderRejectsUnknownKind(t *testing.T) {
	r := NewFileRenderer(t.TempDir())
	_, err := r.Render(context.Background(), optimalSolution(), ChartKind("pie"))
	assert.Error(t, err)
}
