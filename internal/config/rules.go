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

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/replenlab/replend/internal/rules"
)

// LoadRules reads a business-rule set from a YAML file. The file maps
// directly onto rules.Set:
//
//	priorities:
//	  - skuSet: [SKU-001, SKU-002]
//	    policy: penalized
//	    penaltyMultiplier: 3.0
//	leadTimes:
//	  - supplier: acme
//	    leadTimeDays: 21
//	bounds:
//	  - sku: SKU-001
//	    minQty: 50
//	    allOrNothing: true
//	capacities:
//	  - resource: warehouse
//	    maxUnits: 10000
//
// An empty path returns an empty rule set. Referential validation against
// the frame happens at build time, not here.
func LoadRules(path string) (*rules.Set, error) {
	if path == "" {
		return &rules.Set{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var set rules.Set
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	set.Canonicalize()
	return &set, nil
}
