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

// Package retrieval defines the Data Retrieval collaborator contract and an
// in-memory implementation backed by CSV snapshots. The collaborator maps
// vague user phrasing ("fast-moving items") to concrete field/filter
// combinations and produces data frame slices.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/replenlab/replend/internal/frame"
)

// FieldSpec names one field/filter combination to retrieve.
type FieldSpec struct {
	// Field is the unified-frame column, e.g. "demandMean".
	Field string

	// Filter optionally restricts rows, e.g. "fast_moving".
	Filter string

	// Limit caps the number of rows returned by a filtered fetch.
	// Zero means unlimited.
	Limit int
}

// DataUnavailableError reports an unreachable backing source. The
// orchestrator surfaces it as a clarification, never a crash.
type DataUnavailableError struct {
	Source string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data source %s unavailable: %v", e.Source, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// Retriever is the Data Retrieval collaborator contract.
type Retriever interface {
	// Fetch returns the unified frame slice covering the requested fields.
	Fetch(ctx context.Context, fields []FieldSpec) (*frame.Frame, error)

	// ResolveFuzzyTerm maps vague phrasing to concrete field specs.
	ResolveFuzzyTerm(ctx context.Context, term string) ([]FieldSpec, error)
}

// Canonical fuzzy-term table: phrase fragments to topics to field specs.
var fuzzyTopics = []struct {
	topic   string
	phrases []string
	fields  []FieldSpec
}{
	{
		topic:   "fast_moving",
		phrases: []string{"fast-moving", "fast moving", "high velocity", "top sellers"},
		fields:  []FieldSpec{{Field: "demandMean", Filter: "fast_moving", Limit: 100}},
	},
	{
		topic:   "inventory",
		phrases: []string{"inventory", "stock", "on hand", "soh"},
		fields:  []FieldSpec{{Field: "stockOnHand"}},
	},
	{
		topic:   "lead_time",
		phrases: []string{"lead time", "supplier lead"},
		fields:  []FieldSpec{{Field: "leadTimeDays"}},
	},
	{
		topic:   "demand",
		phrases: []string{"forecast", "demand"},
		fields:  []FieldSpec{{Field: "demandMean"}, {Field: "demandStd"}},
	},
	{
		topic:   "transport_cost",
		phrases: []string{"transport", "shipping", "freight"},
		fields:  []FieldSpec{{Field: "transportCost"}},
	},
}

// fastMovingQuantile is the demand quantile above which a SKU counts as
// fast-moving.
const fastMovingQuantile = 0.8

// MemoryRetriever serves a pre-loaded frame snapshot. Production deployments
// would back this with SQL or warehouse connectors; the contract is the same.
type MemoryRetriever struct {
	snapshot *frame.Frame
}

// NewMemoryRetriever wraps a frame snapshot in the Retriever contract.
func NewMemoryRetriever(snapshot *frame.Frame) *MemoryRetriever {
	return &MemoryRetriever{snapshot: snapshot}
}

// Fetch implements Retriever.
func (r *MemoryRetriever) Fetch(_ context.Context, fields []FieldSpec) (*frame.Frame, error) {
	if r.snapshot == nil {
		return nil, &DataUnavailableError{Source: "memory", Err: fmt.Errorf("no snapshot loaded")}
	}
	out := r.snapshot.Clone()
	for _, fs := range fields {
		if fs.Filter == "fast_moving" {
			return fastMovingSlice(out, fs.Limit), nil
		}
	}
	return out, nil
}

// fastMovingSlice keeps the rows at or above the fast-moving demand quantile,
// ordered by descending demand.
func fastMovingSlice(f *frame.Frame, limit int) *frame.Frame {
	if len(f.Rows) == 0 {
		return f
	}
	demands := make([]float64, len(f.Rows))
	for i, row := range f.Rows {
		demands[i] = row.DemandMean
	}
	sort.Float64s(demands)
	cutoff := demands[int(float64(len(demands)-1)*fastMovingQuantile)]

	rows := make([]frame.Row, 0, len(f.Rows))
	for _, row := range f.Rows {
		if row.DemandMean >= cutoff {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DemandMean > rows[j].DemandMean })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SKU < rows[j].SKU })
	return &frame.Frame{Version: f.Version + "#fast_moving", Rows: rows}
}

// ResolveFuzzyTerm implements Retriever.
func (r *MemoryRetriever) ResolveFuzzyTerm(_ context.Context, term string) ([]FieldSpec, error) {
	t := strings.ToLower(term)
	var out []FieldSpec
	for _, topic := range fuzzyTopics {
		for _, phrase := range topic.phrases {
			if strings.Contains(t, phrase) {
				out = append(out, topic.fields...)
				break
			}
		}
	}
	if len(out) == 0 {
		// Unmatched phrasing falls back to the full frame.
		out = []FieldSpec{{Field: "sku"}}
	}
	return out, nil
}
