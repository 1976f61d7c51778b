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

// Package frame defines the unified data frame: the normalized SKU-level table
// of inventory, demand, supplier, and cost attributes that the modeling engine
// consumes read-only.
package frame

import (
	"fmt"
	"sort"
)

// Row holds the attributes of one SKU in the unified frame.
type Row struct {
	// SKU is the stock-keeping unit identifier.
	SKU string `json:"sku" yaml:"sku"`

	// Description is the human-readable item description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Supplier identifies the supplying vendor for this SKU.
	Supplier string `json:"supplier" yaml:"supplier"`

	// Resource identifies the capacity resource (e.g., warehouse) that
	// orders of this SKU consume.
	Resource string `json:"resource" yaml:"resource"`

	// StockOnHand is the current inventory position in units.
	StockOnHand float64 `json:"stockOnHand" yaml:"stockOnHand"`

	// DemandMean is the expected demand per planning period in units.
	DemandMean float64 `json:"demandMean" yaml:"demandMean"`

	// DemandStd is the standard deviation of per-period demand.
	DemandStd float64 `json:"demandStd" yaml:"demandStd"`

	// UnitVolume is the capacity consumed per ordered unit.
	UnitVolume float64 `json:"unitVolume" yaml:"unitVolume"`

	// TransportCost is the per-unit transport cost folded into the
	// ordering objective.
	TransportCost float64 `json:"transportCost" yaml:"transportCost"`

	// HoldingCost is the per-unit holding cost. Zero means "use the
	// engine default".
	HoldingCost float64 `json:"holdingCost,omitempty" yaml:"holdingCost,omitempty"`

	// LeadTimeDays is the supplier lead time for this SKU in days.
	LeadTimeDays float64 `json:"leadTimeDays" yaml:"leadTimeDays"`
}

// Frame is an immutable snapshot of the unified data frame.
// Rows are kept sorted by SKU so that two frames with the same content are
// structurally identical regardless of source ordering.
type Frame struct {
	// Version identifies the snapshot (e.g., a data-pull timestamp or an
	// upstream dataset revision).
	Version string `json:"version" yaml:"version"`

	// Rows are the SKU records, sorted by SKU.
	Rows []Row `json:"rows" yaml:"rows"`
}

// New builds a canonical Frame from the given rows. Rows are copied and
// sorted by SKU. Duplicate SKUs are an error.
func New(version string, rows []Row) (*Frame, error) {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SKU < sorted[j].SKU })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].SKU == sorted[i-1].SKU {
			return nil, fmt.Errorf("duplicate SKU %q in frame", sorted[i].SKU)
		}
	}
	return &Frame{Version: version, Rows: sorted}, nil
}

// Clone returns a deep copy of the frame. Scenario deltas mutate the copy,
// never the receiver.
func (f *Frame) Clone() *Frame {
	rows := make([]Row, len(f.Rows))
	copy(rows, f.Rows)
	return &Frame{Version: f.Version, Rows: rows}
}

// Lookup returns the row for the given SKU.
func (f *Frame) Lookup(sku string) (Row, bool) {
	i := sort.Search(len(f.Rows), func(i int) bool { return f.Rows[i].SKU >= sku })
	if i < len(f.Rows) && f.Rows[i].SKU == sku {
		return f.Rows[i], true
	}
	return Row{}, false
}

// HasSKU reports whether the frame contains the given SKU.
func (f *Frame) HasSKU(sku string) bool {
	_, ok := f.Lookup(sku)
	return ok
}

// HasSupplier reports whether any row references the given supplier.
func (f *Frame) HasSupplier(supplier string) bool {
	for _, r := range f.Rows {
		if r.Supplier == supplier {
			return true
		}
	}
	return false
}

// HasResource reports whether any row references the given capacity resource.
func (f *Frame) HasResource(resource string) bool {
	for _, r := range f.Rows {
		if r.Resource == resource {
			return true
		}
	}
	return false
}

// SKUs returns the SKU identifiers in canonical order.
func (f *Frame) SKUs() []string {
	out := make([]string, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.SKU
	}
	return out
}

// Resources returns the distinct capacity resources in canonical order.
func (f *Frame) Resources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range f.Rows {
		if r.Resource == "" {
			continue
		}
		if _, ok := seen[r.Resource]; !ok {
			seen[r.Resource] = struct{}{}
			out = append(out, r.Resource)
		}
	}
	sort.Strings(out)
	return out
}

// TotalDemand returns the summed mean demand across all rows.
func (f *Frame) TotalDemand() float64 {
	var total float64
	for _, r := range f.Rows {
		total += r.DemandMean
	}
	return total
}
