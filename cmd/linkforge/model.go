// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/linkforge/linkforge/internal/compare"
	"github.com/linkforge/linkforge/internal/expr"
)

// modelSpec is the on-disk declaration of the comparisons to train.
//
//	{
//	  "comparisons": [
//	    {
//	      "name": "cost",
//	      "levels": [
//	        {"name": "exact", "condition": "cost_l = cost_r"},
//	        {"name": "close", "condition": "abs(cost_l - cost_r) < 5"}
//	      ]
//	    }
//	  ]
//	}
//
// Conditions are SQL boolean expressions over the blocked pair columns
// (left columns suffixed _l, right columns _r). The "else" level is
// implicit and must not be declared.
type modelSpec struct {
	Comparisons []comparisonSpec `json:"comparisons"`
}

type comparisonSpec struct {
	Name   string      `json:"name"`
	Levels []levelSpec `json:"levels"`
}

type levelSpec struct {
	Name      string `json:"name"`
	Condition string `json:"condition"`
}

// loadModelSpec reads a model declaration and builds the comparisons.
func loadModelSpec(path string) (*compare.Comparisons, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model spec: %w", err)
	}
	var spec modelSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse model spec %s: %w", path, err)
	}
	if len(spec.Comparisons) == 0 {
		return nil, fmt.Errorf("model spec %s declares no comparisons", path)
	}

	comparisons := make([]*compare.Comparison, 0, len(spec.Comparisons))
	for _, cs := range spec.Comparisons {
		levels := make([]compare.Level, 0, len(cs.Levels))
		for _, ls := range cs.Levels {
			if ls.Condition == "" {
				return nil, fmt.Errorf("model spec %s: level %q in comparison %q has no condition", path, ls.Name, cs.Name)
			}
			levels = append(levels, compare.NewLevel(ls.Name, expr.Raw(ls.Condition)))
		}
		c, err := compare.NewComparison(cs.Name, levels...)
		if err != nil {
			return nil, fmt.Errorf("model spec %s: %w", path, err)
		}
		comparisons = append(comparisons, c)
	}
	return compare.NewComparisons(comparisons...)
}
