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

// Package rules defines the business rules compiled into model constraints by
// the engine. A rule set is a plain value; Canonicalize establishes an ordering
// so that set-equal rule sets are structurally identical, which downstream
// fingerprinting depends on.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/replenlab/replend/internal/frame"
)

// PriorityPolicy selects how a priority rule is enforced for its SKU set.
// The choice is per rule: some SKUs may be penalized while others carry a
// hard service target in the same rule set.
type PriorityPolicy string

const (
	// PolicyPenalized scales the stockout penalty term in the objective.
	PolicyPenalized PriorityPolicy = "penalized"

	// PolicyTargeted caps the stockout shortfall with a hard constraint and
	// contributes no penalty term to the objective.
	PolicyTargeted PriorityPolicy = "targeted"
)

// PriorityRule marks a set of SKUs as priority items.
type PriorityRule struct {
	// SKUSet lists the SKUs the rule applies to. Canonicalized to sorted order.
	SKUSet []string `yaml:"skuSet" json:"skuSet"`

	// Policy selects penalized or targeted enforcement.
	Policy PriorityPolicy `yaml:"policy" json:"policy"`

	// PenaltyMultiplier scales the base stockout penalty (penalized policy).
	PenaltyMultiplier float64 `yaml:"penaltyMultiplier,omitempty" json:"penaltyMultiplier,omitempty"`

	// ServiceTarget is the fraction of demand that must be served
	// (targeted policy), e.g. 0.98.
	ServiceTarget float64 `yaml:"serviceTarget,omitempty" json:"serviceTarget,omitempty"`
}

// LeadTimeRule overrides the lead time for all SKUs of a supplier.
type LeadTimeRule struct {
	// Supplier is the supplier identifier the rule applies to.
	Supplier string `yaml:"supplier" json:"supplier"`

	// LeadTimeDays is the buffered lead time in days.
	LeadTimeDays float64 `yaml:"leadTimeDays" json:"leadTimeDays"`
}

// BoundsRule bounds the order quantity of a single SKU.
type BoundsRule struct {
	// SKU is the stock-keeping unit the rule applies to.
	SKU string `yaml:"sku" json:"sku"`

	// MinQty is the minimum order quantity.
	MinQty float64 `yaml:"minQty" json:"minQty"`

	// MaxQty is the maximum order quantity. Zero means unbounded.
	MaxQty float64 `yaml:"maxQty,omitempty" json:"maxQty,omitempty"`

	// AllOrNothing selects MOQ semantics: when true the order is either zero
	// or at least MinQty (modeled with a binary indicator); when false MinQty
	// is a plain lower bound.
	AllOrNothing bool `yaml:"allOrNothing,omitempty" json:"allOrNothing,omitempty"`
}

// CapacityRule limits the total ordered volume charged to a resource.
type CapacityRule struct {
	// Resource is the capacity resource identifier (e.g., a warehouse).
	Resource string `yaml:"resource" json:"resource"`

	// MaxUnits is the capacity limit in volume units.
	MaxUnits float64 `yaml:"maxUnits" json:"maxUnits"`
}

// Set is the full collection of business rules applied to one model
// build. The zero value is a valid empty rule set.
type Set struct {
	Priorities []PriorityRule `yaml:"priorities,omitempty" json:"priorities,omitempty"`
	LeadTimes  []LeadTimeRule `yaml:"leadTimes,omitempty" json:"leadTimes,omitempty"`
	Bounds     []BoundsRule   `yaml:"bounds,omitempty" json:"bounds,omitempty"`
	Capacities []CapacityRule `yaml:"capacities,omitempty" json:"capacities,omitempty"`
}

// Clone returns a deep copy of the rule set.
func (s *Set) Clone() *Set {
	out := &Set{
		Priorities: make([]PriorityRule, len(s.Priorities)),
		LeadTimes:  make([]LeadTimeRule, len(s.LeadTimes)),
		Bounds:     make([]BoundsRule, len(s.Bounds)),
		Capacities: make([]CapacityRule, len(s.Capacities)),
	}
	copy(out.LeadTimes, s.LeadTimes)
	copy(out.Bounds, s.Bounds)
	copy(out.Capacities, s.Capacities)
	for i, p := range s.Priorities {
		skus := make([]string, len(p.SKUSet))
		copy(skus, p.SKUSet)
		p.SKUSet = skus
		out.Priorities[i] = p
	}
	return out
}

// Canonicalize sorts every rule list (and every SKU set) into a stable order.
// Two rule sets that are set-equal become structurally equal after
// canonicalization, which is required for cache-key stability. Every
// comparator orders by the full rule tuple: rules that tie on their leading
// field (e.g. two priority rules starting at the same SKU, or duplicate-SKU
// bounds entries) must still land in one defined order.
func (s *Set) Canonicalize() {
	for i := range s.Priorities {
		sort.Strings(s.Priorities[i].SKUSet)
	}
	sort.SliceStable(s.Priorities, func(i, j int) bool {
		return priorityKey(s.Priorities[i]) < priorityKey(s.Priorities[j])
	})
	sort.SliceStable(s.LeadTimes, func(i, j int) bool {
		a, b := s.LeadTimes[i], s.LeadTimes[j]
		if a.Supplier != b.Supplier {
			return a.Supplier < b.Supplier
		}
		return a.LeadTimeDays < b.LeadTimeDays
	})
	sort.SliceStable(s.Bounds, func(i, j int) bool {
		a, b := s.Bounds[i], s.Bounds[j]
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		if a.MinQty != b.MinQty {
			return a.MinQty < b.MinQty
		}
		if a.MaxQty != b.MaxQty {
			return a.MaxQty < b.MaxQty
		}
		return !a.AllOrNothing && b.AllOrNothing
	})
	sort.SliceStable(s.Capacities, func(i, j int) bool {
		a, b := s.Capacities[i], s.Capacities[j]
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		return a.MaxUnits < b.MaxUnits
	})
}

// priorityKey encodes the full priority-rule tuple as a sortable string.
func priorityKey(p PriorityRule) string {
	return fmt.Sprintf("%s|%s|%v|%v", strings.Join(p.SKUSet, ","), p.Policy, p.PenaltyMultiplier, p.ServiceTarget)
}

// ReferenceError reports a rule referencing an entity absent from the frame.
// Unresolved references are a validation failure, never silently dropped.
type ReferenceError struct {
	// Kind is the entity kind: "sku", "supplier", or "resource".
	Kind string

	// Name is the unresolved identifier.
	Name string

	// Rule names the offending rule for user-facing diagnostics.
	Rule string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("rule %s references unknown %s %q", e.Rule, e.Kind, e.Name)
}

// Validate checks every rule against the frame and parameter ranges.
// The first unresolved reference is returned as a *ReferenceError.
func (s *Set) Validate(f *frame.Frame) error {
	for _, p := range s.Priorities {
		if len(p.SKUSet) == 0 {
			return fmt.Errorf("priority rule has empty SKU set")
		}
		switch p.Policy {
		case PolicyPenalized:
			if p.PenaltyMultiplier <= 0 {
				return fmt.Errorf("priority rule: penalty multiplier must be positive, got %v", p.PenaltyMultiplier)
			}
		case PolicyTargeted:
			if p.ServiceTarget <= 0 || p.ServiceTarget > 1 {
				return fmt.Errorf("priority rule: service target must be in (0,1], got %v", p.ServiceTarget)
			}
		default:
			return fmt.Errorf("priority rule: unknown policy %q", p.Policy)
		}
		for _, sku := range p.SKUSet {
			if !f.HasSKU(sku) {
				return &ReferenceError{Kind: "sku", Name: sku, Rule: "priority_sku_penalty"}
			}
		}
	}
	for _, lt := range s.LeadTimes {
		if lt.LeadTimeDays < 0 {
			return fmt.Errorf("lead time rule: days must be non-negative, got %v", lt.LeadTimeDays)
		}
		if !f.HasSupplier(lt.Supplier) {
			return &ReferenceError{Kind: "supplier", Name: lt.Supplier, Rule: "lead_time_buffer"}
		}
	}
	for _, b := range s.Bounds {
		if b.MinQty < 0 {
			return fmt.Errorf("order bounds rule %s: min quantity must be non-negative", b.SKU)
		}
		if b.MaxQty > 0 && b.MaxQty < b.MinQty {
			return fmt.Errorf("order bounds rule %s: max %v below min %v", b.SKU, b.MaxQty, b.MinQty)
		}
		if !f.HasSKU(b.SKU) {
			return &ReferenceError{Kind: "sku", Name: b.SKU, Rule: "order_quantity_bounds"}
		}
	}
	for _, c := range s.Capacities {
		if c.MaxUnits < 0 {
			return fmt.Errorf("capacity rule %s: max units must be non-negative", c.Resource)
		}
		if !f.HasResource(c.Resource) {
			return &ReferenceError{Kind: "resource", Name: c.Resource, Rule: "capacity_limit"}
		}
	}
	return nil
}

// BoundsFor returns the bounds rule for a SKU, if any.
func (s *Set) BoundsFor(sku string) (BoundsRule, bool) {
	for _, b := range s.Bounds {
		if b.SKU == sku {
			return b, true
		}
	}
	return BoundsRule{}, false
}

// SetBounds overwrites the bounds rule for a SKU, creating it if absent.
// Used by scenario deltas; the receiver must be a private copy.
func (s *Set) SetBounds(rule BoundsRule) {
	for i, b := range s.Bounds {
		if b.SKU == rule.SKU {
			s.Bounds[i] = rule
			return
		}
	}
	s.Bounds = append(s.Bounds, rule)
}

// SetLeadTime overwrites the lead time rule for a supplier, creating it if absent.
func (s *Set) SetLeadTime(rule LeadTimeRule) {
	for i, lt := range s.LeadTimes {
		if lt.Supplier == rule.Supplier {
			s.LeadTimes[i] = rule
			return
		}
	}
	s.LeadTimes = append(s.LeadTimes, rule)
}

// LeadTimeFor returns the lead time override for a supplier, if any.
func (s *Set) LeadTimeFor(supplier string) (float64, bool) {
	for _, lt := range s.LeadTimes {
		if lt.Supplier == supplier {
			return lt.LeadTimeDays, true
		}
	}
	return 0, false
}

// PriorityFor returns the priority rule covering a SKU, if any.
func (s *Set) PriorityFor(sku string) (PriorityRule, bool) {
	for _, p := range s.Priorities {
		for _, ps := range p.SKUSet {
			if ps == sku {
				return p, true
			}
		}
	}
	return PriorityRule{}, false
}

// ScaleCapacity multiplies the capacity limit of a resource by factor.
// A missing capacity rule is left missing: scaling an unconstrained resource
// is a no-op, not an error, because the reference was validated upstream.
func (s *Set) ScaleCapacity(resource string, factor float64) {
	for i, c := range s.Capacities {
		if c.Resource == resource {
			s.Capacities[i].MaxUnits = c.MaxUnits * factor
			return
		}
	}
}
