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

package retrieval

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/replenlab/replend/internal/frame"
)

// LoadCSV reads a unified-frame snapshot from a CSV file with a header row.
// Recognized columns: sku, description, supplier, resource, stock_on_hand,
// demand_mean, demand_std, unit_volume, transport_cost, holding_cost,
// lead_time_days. The file's modification is the caller's concern; the
// returned frame is an immutable snapshot versioned by the given tag.
func LoadCSV(path, version string) (*MemoryRetriever, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataUnavailableError{Source: path, Err: err}
	}
	defer f.Close()

	snapshot, err := parseCSV(f, version)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewMemoryRetriever(snapshot), nil
}

func parseCSV(r io.Reader, version string) (*frame.Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["sku"]; !ok {
		return nil, fmt.Errorf("missing required column sku")
	}

	var rows []frame.Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		line++

		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(record) {
				return record[i]
			}
			return ""
		}
		num := func(name string) (float64, error) {
			s := get(name)
			if s == "" {
				return 0, nil
			}
			return strconv.ParseFloat(s, 64)
		}

		row := frame.Row{
			SKU:         get("sku"),
			Description: get("description"),
			Supplier:    get("supplier"),
			Resource:    get("resource"),
		}
		fields := []struct {
			name string
			dst  *float64
		}{
			{"stock_on_hand", &row.StockOnHand},
			{"demand_mean", &row.DemandMean},
			{"demand_std", &row.DemandStd},
			{"unit_volume", &row.UnitVolume},
			{"transport_cost", &row.TransportCost},
			{"holding_cost", &row.HoldingCost},
			{"lead_time_days", &row.LeadTimeDays},
		}
		for _, f := range fields {
			v, err := num(f.name)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, f.name, err)
			}
			*f.dst = v
		}
		rows = append(rows, row)
	}
	return frame.New(version, rows)
}
