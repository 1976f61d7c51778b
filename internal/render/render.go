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

// Package render defines the Visualization collaborator: a pure consumer of
// Solutions that emits chart specifications. It never mutates or re-solves.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/replenlab/replend/pkg/core"
)

// ChartKind selects the chart family.
type ChartKind string

const (
	// ChartOrders plots recommended order quantities per SKU.
	ChartOrders ChartKind = "orders"

	// ChartCoverage plots post-order coverage (stock + order vs demand).
	ChartCoverage ChartKind = "coverage"
)

// RenderResult locates the rendered artifact.
type RenderResult struct {
	// FilePath is where the chart spec was written.
	FilePath string `json:"file_path"`

	// SpecJSON is the chart specification document.
	SpecJSON json.RawMessage `json:"spec_json"`
}

// Renderer is the Visualization collaborator contract.
type Renderer interface {
	// Render produces a chart artifact from a Solution.
	Render(ctx context.Context, sol *core.Solution, kind ChartKind) (*RenderResult, error)
}

// chartSpec is a minimal declarative chart document consumed by the chat
// front end.
type chartSpec struct {
	Kind   ChartKind    `json:"kind"`
	Title  string       `json:"title"`
	XLabel string       `json:"xLabel"`
	YLabel string       `json:"yLabel"`
	Series []chartPoint `json:"series"`
}

type chartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Extra float64 `json:"extra,omitempty"`
}

// FileRenderer writes chart specs as JSON documents under an output
// directory.
type FileRenderer struct {
	outDir string
}

// NewFileRenderer creates a FileRenderer targeting outDir.
func NewFileRenderer(outDir string) *FileRenderer {
	return &FileRenderer{outDir: outDir}
}

// Render implements Renderer.
func (r *FileRenderer) Render(_ context.Context, sol *core.Solution, kind ChartKind) (*RenderResult, error) {
	if sol == nil {
		return nil, fmt.Errorf("solution cannot be nil")
	}
	if sol.Status != core.StatusOptimal {
		return nil, fmt.Errorf("cannot render %s solution", sol.Status)
	}

	spec := chartSpec{Kind: kind}
	switch kind {
	case ChartOrders:
		spec.Title = "Recommended order quantities"
		spec.XLabel = "SKU"
		spec.YLabel = "Units"
		for _, d := range sol.Decisions {
			spec.Series = append(spec.Series, chartPoint{Label: d.SKU, Value: d.OrderQty})
		}
	case ChartCoverage:
		spec.Title = "Demand coverage after replenishment"
		spec.XLabel = "SKU"
		spec.YLabel = "Units"
		for _, d := range sol.Decisions {
			spec.Series = append(spec.Series, chartPoint{Label: d.SKU, Value: d.OrderQty, Extra: d.Shortfall})
		}
	default:
		return nil, fmt.Errorf("unknown chart kind %q", kind)
	}

	raw, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode chart spec: %w", err)
	}
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(r.outDir, fmt.Sprintf("%s-%s.json", kind, sol.SpecFingerprint))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, fmt.Errorf("write chart spec: %w", err)
	}
	return &RenderResult{FilePath: path, SpecJSON: raw}, nil
}
