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

// Package scenario implements the what-if engine: structured deltas over a
// base ModelSpec, deterministic re-solves, and a fingerprint-keyed result
// cache.
package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/replenlab/replend/internal/rules"
	"github.com/replenlab/replend/pkg/core"
)

// Kind enumerates the atomic delta types.
type Kind string

const (
	// ScaleDemand multiplies mean demand for one SKU or all SKUs.
	ScaleDemand Kind = "scale_demand"

	// ScaleCapacity multiplies a resource's capacity limit.
	ScaleCapacity Kind = "scale_capacity"

	// SetMOQ overwrites the order-quantity-bounds rule for a SKU, creating
	// it if absent.
	SetMOQ Kind = "set_moq"

	// SetLeadTime overwrites the lead-time rule for a supplier.
	SetLeadTime Kind = "set_lead_time"
)

// Delta is one atomic adjustment to a ModelSpec. Deltas are pure: applying
// the same ordered sequence to the same base spec is deterministic.
type Delta struct {
	// Kind selects the adjustment type.
	Kind Kind `json:"kind"`

	// SKU targets one SKU (ScaleDemand, SetMOQ). Empty with All for
	// frame-wide demand scaling.
	SKU string `json:"sku,omitempty"`

	// All targets every SKU (ScaleDemand only).
	All bool `json:"all,omitempty"`

	// Resource targets a capacity resource (ScaleCapacity). Empty means
	// every capacity-limited resource.
	Resource string `json:"resource,omitempty"`

	// Supplier targets a supplier (SetLeadTime).
	Supplier string `json:"supplier,omitempty"`

	// Factor is the multiplier for scaling deltas.
	Factor float64 `json:"factor,omitempty"`

	// Value is the new minimum order quantity for SetMOQ.
	Value float64 `json:"value,omitempty"`

	// Days is the new lead time for SetLeadTime.
	Days float64 `json:"days,omitempty"`
}

// DeltaError reports a malformed delta or a delta referencing an unknown
// entity; it is surfaced to the user with the offending field.
type DeltaError struct {
	// Delta describes the offending delta.
	Delta string

	// Reason explains the failure.
	Reason string
}

func (e *DeltaError) Error() string {
	return fmt.Sprintf("invalid delta %s: %s", e.Delta, e.Reason)
}

// describe renders a delta for diagnostics.
func (d Delta) describe() string {
	switch d.Kind {
	case ScaleDemand:
		if d.All {
			return fmt.Sprintf("scale_demand(all, %g)", d.Factor)
		}
		return fmt.Sprintf("scale_demand(%s, %g)", d.SKU, d.Factor)
	case ScaleCapacity:
		return fmt.Sprintf("scale_capacity(%s, %g)", d.Resource, d.Factor)
	case SetMOQ:
		return fmt.Sprintf("set_moq(%s, %g)", d.SKU, d.Value)
	case SetLeadTime:
		return fmt.Sprintf("set_lead_time(%s, %g)", d.Supplier, d.Days)
	default:
		return string(d.Kind)
	}
}

// validate checks the delta's shape and its references against the base spec.
func (d Delta) validate(base *core.ModelSpec) error {
	switch d.Kind {
	case ScaleDemand:
		if d.Factor <= 0 {
			return &DeltaError{Delta: d.describe(), Reason: "factor must be positive"}
		}
		if !d.All && !base.Frame.HasSKU(d.SKU) {
			return &DeltaError{Delta: d.describe(), Reason: fmt.Sprintf("unknown SKU %q", d.SKU)}
		}
	case ScaleCapacity:
		if d.Factor <= 0 {
			return &DeltaError{Delta: d.describe(), Reason: "factor must be positive"}
		}
		if d.Resource != "" && !base.Frame.HasResource(d.Resource) {
			return &DeltaError{Delta: d.describe(), Reason: fmt.Sprintf("unknown resource %q", d.Resource)}
		}
	case SetMOQ:
		if d.Value < 0 {
			return &DeltaError{Delta: d.describe(), Reason: "MOQ must be non-negative"}
		}
		if !base.Frame.HasSKU(d.SKU) {
			return &DeltaError{Delta: d.describe(), Reason: fmt.Sprintf("unknown SKU %q", d.SKU)}
		}
	case SetLeadTime:
		if d.Days < 0 {
			return &DeltaError{Delta: d.describe(), Reason: "lead time must be non-negative"}
		}
		if !base.Frame.HasSupplier(d.Supplier) {
			return &DeltaError{Delta: d.describe(), Reason: fmt.Sprintf("unknown supplier %q", d.Supplier)}
		}
	default:
		return &DeltaError{Delta: string(d.Kind), Reason: "unknown delta kind"}
	}
	return nil
}

// apply mutates the (already cloned) spec in place.
func (d Delta) apply(spec *core.ModelSpec) {
	switch d.Kind {
	case ScaleDemand:
		for i := range spec.Frame.Rows {
			if d.All || spec.Frame.Rows[i].SKU == d.SKU {
				spec.Frame.Rows[i].DemandMean *= d.Factor
			}
		}
	case ScaleCapacity:
		if d.Resource == "" {
			for _, c := range spec.Rules.Capacities {
				spec.Rules.ScaleCapacity(c.Resource, d.Factor)
			}
			return
		}
		spec.Rules.ScaleCapacity(d.Resource, d.Factor)
	case SetMOQ:
		bounds, ok := spec.Rules.BoundsFor(d.SKU)
		if !ok {
			// A fresh MOQ carries all-or-nothing semantics: no partial
			// orders below the minimum.
			bounds = rules.BoundsRule{SKU: d.SKU, AllOrNothing: true}
		}
		bounds.MinQty = d.Value
		if bounds.MaxQty > 0 && bounds.MaxQty < bounds.MinQty {
			bounds.MaxQty = bounds.MinQty
		}
		spec.Rules.SetBounds(bounds)
	case SetLeadTime:
		spec.Rules.SetLeadTime(rules.LeadTimeRule{Supplier: d.Supplier, LeadTimeDays: d.Days})
	}
}

// Apply folds the delta sequence over a clone of the base spec, in order.
// Deltas do not commute in general, so the given order is authoritative.
// The base spec is never mutated.
func Apply(base *core.ModelSpec, deltas []Delta) (*core.ModelSpec, error) {
	if base == nil {
		return nil, fmt.Errorf("base spec cannot be nil")
	}
	for _, d := range deltas {
		if err := d.validate(base); err != nil {
			return nil, err
		}
	}
	derived := base.Clone()
	for _, d := range deltas {
		d.apply(derived)
	}
	derived.Rules.Canonicalize()
	return derived, nil
}

// Key identifies a cached scenario result: the base spec fingerprint plus the
// fingerprint of the verbatim delta sequence.
type Key struct {
	Base   string `json:"base"`
	Deltas string `json:"deltas"`
}

// String renders the key for storage.
func (k Key) String() string { return k.Base + "/" + k.Deltas }

// FingerprintDeltas hashes the ordered delta sequence. Order is preserved
// verbatim: permutations of the same deltas produce different fingerprints.
func FingerprintDeltas(deltas []Delta) string {
	raw, err := json.Marshal(deltas)
	if err != nil {
		panic(fmt.Sprintf("scenario: marshal deltas: %v", err))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(raw))
}

// KeyFor computes the cache key for a base spec and delta sequence.
func KeyFor(base *core.ModelSpec, deltas []Delta) Key {
	return Key{Base: base.Fingerprint(), Deltas: FingerprintDeltas(deltas)}
}
