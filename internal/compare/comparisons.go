// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package compare

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linkforge/linkforge/internal/engine"
)

// ErrComparisonNotFound marks a lookup of an unknown comparison name.
var ErrComparisonNotFound = errors.New("comparison not found")

// Comparisons aggregates several independent comparisons. Lookup is by
// name only; the collection has no positional API because integer indexing
// into a name-keyed collection is a bug, not a fallback.
type Comparisons struct {
	items  []*Comparison
	byName map[string]*Comparison
}

// NewComparisons builds a collection. Comparison names must be unique.
func NewComparisons(comparisons ...*Comparison) (*Comparisons, error) {
	byName := make(map[string]*Comparison, len(comparisons))
	for _, c := range comparisons {
		if _, dup := byName[c.name]; dup {
			return nil, fmt.Errorf("duplicate comparison name %q", c.name)
		}
		byName[c.name] = c
	}
	return &Comparisons{items: append([]*Comparison(nil), comparisons...), byName: byName}, nil
}

// Len returns the number of comparisons.
func (cs *Comparisons) Len() int { return len(cs.items) }

// All returns the comparisons in declaration order.
func (cs *Comparisons) All() []*Comparison {
	return append([]*Comparison(nil), cs.items...)
}

// Get looks a comparison up by name.
func (cs *Comparisons) Get(name string) (*Comparison, error) {
	c, ok := cs.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrComparisonNotFound, name)
	}
	return c, nil
}

// LabelPairs appends one label column per comparison, each named after its
// comparison, in a single SELECT over the pair table.
func (cs *Comparisons) LabelPairs(pairs engine.Relation, how LabelHow) engine.Relation {
	if len(cs.items) == 0 {
		return pairs
	}
	projections := make([]string, 0, len(cs.items)+1)
	projections = append(projections, "*")
	for _, c := range cs.items {
		projections = append(projections, c.caseExpr(how)+" AS "+quoteIdent(c.name))
	}
	return pairs.DB().Relation(fmt.Sprintf(
		"SELECT %s FROM %s", strings.Join(projections, ", "), pairs.Sub(),
	))
}
