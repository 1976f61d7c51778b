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

package scenario

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Delta phrase grammar, e.g.:
//
//	"what if demand +15% and capacity -10%"
//	"demand for SKU-3 +25%"
//	"set moq SKU-1 to 50"
//	"lead time for ACME 7 days"
var (
	demandRe   = regexp.MustCompile(`demand\s*(?:for\s+(\S+)\s+)?([+-]?\d+(?:\.\d+)?)\s*%`)
	capacityRe = regexp.MustCompile(`capacity\s*(?:for\s+(\S+)\s+)?([+-]?\d+(?:\.\d+)?)\s*%`)
	moqRe      = regexp.MustCompile(`moq\s+(?:for\s+)?(\S+?)\s+(?:to\s+)?(\d+(?:\.\d+)?)`)
	leadRe     = regexp.MustCompile(`lead\s*[- ]?time\s+(?:for\s+)?(\S+)\s+(?:to\s+)?(\d+(?:\.\d+)?)\s*days?`)
)

type match struct {
	pos   int
	delta Delta
}

// Parse extracts an ordered delta sequence from free text. The sequence
// order follows phrase order in the text, since deltas do not commute.
// Text with no recognizable adjustment yields a *DeltaError.
func Parse(text string) ([]Delta, error) {
	lower := strings.ToLower(text)
	var matches []match

	for _, m := range demandRe.FindAllStringSubmatchIndex(lower, -1) {
		pct, err := strconv.ParseFloat(slice(lower, m, 2), 64)
		if err != nil {
			continue
		}
		d := Delta{Kind: ScaleDemand, Factor: 1 + pct/100}
		if target := slice(text, m, 1); target != "" {
			d.SKU = target
		} else {
			d.All = true
		}
		matches = append(matches, match{pos: m[0], delta: d})
	}
	for _, m := range capacityRe.FindAllStringSubmatchIndex(lower, -1) {
		pct, err := strconv.ParseFloat(slice(lower, m, 2), 64)
		if err != nil {
			continue
		}
		d := Delta{Kind: ScaleCapacity, Factor: 1 + pct/100}
		d.Resource = slice(text, m, 1)
		matches = append(matches, match{pos: m[0], delta: d})
	}
	for _, m := range moqRe.FindAllStringSubmatchIndex(lower, -1) {
		value, err := strconv.ParseFloat(slice(lower, m, 2), 64)
		if err != nil {
			continue
		}
		matches = append(matches, match{pos: m[0], delta: Delta{
			Kind:  SetMOQ,
			SKU:   slice(text, m, 1),
			Value: value,
		}})
	}
	for _, m := range leadRe.FindAllStringSubmatchIndex(lower, -1) {
		days, err := strconv.ParseFloat(slice(lower, m, 2), 64)
		if err != nil {
			continue
		}
		matches = append(matches, match{pos: m[0], delta: Delta{
			Kind:     SetLeadTime,
			Supplier: slice(text, m, 1),
			Days:     days,
		}})
	}

	if len(matches) == 0 {
		return nil, &DeltaError{
			Delta:  text,
			Reason: "no recognizable adjustment; try phrases like 'demand +15%', 'capacity -10%', 'moq SKU-1 to 50', or 'lead time ACME 7 days'",
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })
	deltas := make([]Delta, len(matches))
	for i, m := range matches {
		deltas[i] = m.delta
	}
	return deltas, nil
}

// slice extracts submatch group g from FindAllStringSubmatchIndex output,
// preserving original casing for identifiers.
func slice(s string, m []int, g int) string {
	lo, hi := m[2*g], m[2*g+1]
	if lo < 0 {
		return ""
	}
	return s[lo:hi]
}
