// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

// Package compare classifies candidate pairs into named, mutually exclusive
// comparison levels.
//
// A Comparison is an ordered rule set: each level holds a boolean condition
// over a blocked pair row, and the first condition that holds determines the
// pair's label. Pairs matching no level fall into the synthesized trailing
// "else" level, which every Comparison has and which cannot be removed or
// reordered. The whole rule set compiles to a single CASE expression pushed
// into DuckDB, so no per-row branching happens in Go.
package compare

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linkforge/linkforge/internal/engine"
	"github.com/linkforge/linkforge/internal/expr"
)

// ElseLevel is the reserved name of the synthesized catch-all level.
const ElseLevel = "else"

// Lookup errors, checked with errors.Is.
var (
	// ErrLevelNotFound marks a lookup of a level name that does not exist.
	ErrLevelNotFound = errors.New("comparison level not found")
	// ErrLevelIndex marks a level index outside [0, Len()).
	ErrLevelIndex = errors.New("comparison level index out of range")
)

// Level is a named classification rule over a blocked pair row.
// Levels are pure values; the same level can classify many pair tables.
type Level struct {
	name      string
	condition expr.Expr
}

// NewLevel builds a level from a name and a condition over pair-row
// columns, e.g. NewLevel("exact", expr.Eq(expr.Col("cost_l"), expr.Col("cost_r"))).
func NewLevel(name string, condition expr.Expr) Level {
	return Level{name: name, condition: condition}
}

// Name returns the level name.
func (l Level) Name() string { return l.name }

// Condition returns the level's boolean condition.
func (l Level) Condition() expr.Expr { return l.condition }

// Comparison is an ordered sequence of levels plus the synthesized trailing
// else level. Declaration order is precedence: earlier levels win.
type Comparison struct {
	name   string
	levels []Level
}

// NewComparison builds a comparison from explicitly declared levels.
// Level names must be unique and must not use the reserved else name;
// the else level is appended implicitly.
func NewComparison(name string, levels ...Level) (*Comparison, error) {
	if name == "" {
		return nil, fmt.Errorf("comparison name must not be empty")
	}
	// A CASE expression needs at least one WHEN; a comparison with only the
	// implicit else could not classify anything anyway.
	if len(levels) == 0 {
		return nil, fmt.Errorf("comparison %q declares no levels", name)
	}
	seen := make(map[string]struct{}, len(levels))
	for _, lv := range levels {
		if lv.name == ElseLevel {
			return nil, fmt.Errorf("comparison %q: level name %q is reserved", name, ElseLevel)
		}
		if _, dup := seen[lv.name]; dup {
			return nil, fmt.Errorf("comparison %q: duplicate level name %q", name, lv.name)
		}
		seen[lv.name] = struct{}{}
	}
	return &Comparison{name: name, levels: append([]Level(nil), levels...)}, nil
}

// MustComparison is NewComparison that panics on invalid declarations.
// Intended for statically declared comparisons.
func MustComparison(name string, levels ...Level) *Comparison {
	c, err := NewComparison(name, levels...)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the comparison name.
func (c *Comparison) Name() string { return c.name }

// Len returns the number of levels including the synthesized else level.
func (c *Comparison) Len() int { return len(c.levels) + 1 }

// Levels returns all levels in declaration order, ending with else.
func (c *Comparison) Levels() []Level {
	out := make([]Level, 0, c.Len())
	out = append(out, c.levels...)
	return append(out, c.elseLevel())
}

// Level looks a level up by name. The else level is always present.
func (c *Comparison) Level(name string) (Level, error) {
	for _, lv := range c.levels {
		if lv.name == name {
			return lv, nil
		}
	}
	if name == ElseLevel {
		return c.elseLevel(), nil
	}
	return Level{}, fmt.Errorf("%w: %q in comparison %q", ErrLevelNotFound, name, c.name)
}

// LevelAt looks a level up by position. The else level sits at Len()-1.
func (c *Comparison) LevelAt(i int) (Level, error) {
	if i < 0 || i >= c.Len() {
		return Level{}, fmt.Errorf("%w: %d not in [0, %d) in comparison %q", ErrLevelIndex, i, c.Len(), c.name)
	}
	if i == len(c.levels) {
		return c.elseLevel(), nil
	}
	return c.levels[i], nil
}

// elseLevel synthesizes the catch-all: none of the declared levels matched.
func (c *Comparison) elseLevel() Level {
	conds := make([]expr.Expr, len(c.levels))
	for i, lv := range c.levels {
		conds[i] = lv.condition
	}
	return Level{name: ElseLevel, condition: expr.Not(expr.Or(conds...))}
}

// LabelHow selects the label representation written by LabelPairs.
type LabelHow int

const (
	// ByName labels pairs with the level name.
	ByName LabelHow = iota
	// ByIndex labels pairs with the level's declaration position;
	// the else level gets the position after the last declared level.
	ByIndex
)

// LabelPairs classifies every row of a blocked pair table into exactly one
// level, appending the label as a new column named after the comparison.
// The rule set becomes one precedence-ordered CASE expression, evaluated
// entirely inside the engine.
func (c *Comparison) LabelPairs(pairs engine.Relation, how LabelHow) engine.Relation {
	return pairs.DB().Relation(fmt.Sprintf(
		"SELECT *, %s AS %s FROM %s",
		c.caseExpr(how), quoteIdent(c.name), pairs.Sub(),
	))
}

// caseExpr renders the first-match-wins CASE over all declared levels.
func (c *Comparison) caseExpr(how LabelHow) string {
	var sb strings.Builder
	sb.WriteString("CASE")
	for i, lv := range c.levels {
		sb.WriteString(" WHEN ")
		sb.WriteString(lv.condition.SQL())
		sb.WriteString(" THEN ")
		if how == ByIndex {
			fmt.Fprintf(&sb, "%d", i)
		} else {
			sb.WriteString(expr.Lit(lv.name).SQL())
		}
	}
	sb.WriteString(" ELSE ")
	if how == ByIndex {
		fmt.Fprintf(&sb, "%d", len(c.levels))
	} else {
		sb.WriteString(expr.Lit(ElseLevel).SQL())
	}
	sb.WriteString(" END")
	return sb.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
