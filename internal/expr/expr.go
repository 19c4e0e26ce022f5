// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

// Package expr builds immutable boolean expression trees that are rendered
// to SQL and pushed into DuckDB. Expressions are plain values with no
// internal state; the same tree can be shared across goroutines and reused
// against many different pair tables.
//
// Two kinds of column references exist:
//
//   - Col("cost_l") references a column of a blocked pair row, used in
//     comparison-level conditions.
//   - L("name") / R("name") reference a column on one side of a dataset
//     pair, used in join conditions before the pair table exists.
package expr

import (
	"fmt"
	"strings"
)

// Expr is a boolean or scalar expression renderable as SQL.
type Expr interface {
	SQL() string
}

// Side identifies which dataset of a pair a column reference binds to.
type Side int

const (
	// SideNone marks a column of the current (already joined) row.
	SideNone Side = iota
	// SideLeft marks a column of the left dataset, aliased "l" in joins.
	SideLeft
	// SideRight marks a column of the right dataset, aliased "r" in joins.
	SideRight
)

// column references a column, optionally qualified by a pair side.
type column struct {
	side Side
	name string
}

func (c column) SQL() string {
	q := quoteIdent(c.name)
	switch c.side {
	case SideLeft:
		return "l." + q
	case SideRight:
		return "r." + q
	default:
		return q
	}
}

// Col references a column of the current row.
func Col(name string) Expr { return column{side: SideNone, name: name} }

// L references a column of the left dataset in a join condition.
func L(name string) Expr { return column{side: SideLeft, name: name} }

// R references a column of the right dataset in a join condition.
func R(name string) Expr { return column{side: SideRight, name: name} }

// literal is a constant value.
type literal struct {
	value interface{}
}

func (l literal) SQL() string {
	switch v := l.value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Lit wraps a constant value. Strings are quoted, booleans become
// TRUE/FALSE, nil becomes NULL.
func Lit(value interface{}) Expr { return literal{value: value} }

// Bool is a constant boolean predicate. Bool(true) used as a join
// condition is a full cross product.
func Bool(b bool) Expr { return literal{value: b} }

// binary applies an infix operator to two operands.
type binary struct {
	op   string
	a, b Expr
}

func (b binary) SQL() string {
	return "(" + b.a.SQL() + " " + b.op + " " + b.b.SQL() + ")"
}

// Eq builds an equality comparison.
func Eq(a, b Expr) Expr { return binary{op: "=", a: a, b: b} }

// Ne builds an inequality comparison.
func Ne(a, b Expr) Expr { return binary{op: "<>", a: a, b: b} }

// Gt builds a greater-than comparison.
func Gt(a, b Expr) Expr { return binary{op: ">", a: a, b: b} }

// Ge builds a greater-or-equal comparison.
func Ge(a, b Expr) Expr { return binary{op: ">=", a: a, b: b} }

// Lt builds a less-than comparison.
func Lt(a, b Expr) Expr { return binary{op: "<", a: a, b: b} }

// Le builds a less-or-equal comparison.
func Le(a, b Expr) Expr { return binary{op: "<=", a: a, b: b} }

// logical joins sub-predicates with AND or OR.
type logical struct {
	op    string
	parts []Expr
}

func (l logical) SQL() string {
	if len(l.parts) == 1 {
		return l.parts[0].SQL()
	}
	rendered := make([]string, len(l.parts))
	for i, p := range l.parts {
		rendered[i] = p.SQL()
	}
	return "(" + strings.Join(rendered, " "+l.op+" ") + ")"
}

// And builds a conjunction. And() with no operands is TRUE.
func And(parts ...Expr) Expr {
	if len(parts) == 0 {
		return Bool(true)
	}
	return logical{op: "AND", parts: parts}
}

// Or builds a disjunction. Or() with no operands is FALSE.
func Or(parts ...Expr) Expr {
	if len(parts) == 0 {
		return Bool(false)
	}
	return logical{op: "OR", parts: parts}
}

// not negates a predicate.
type not struct {
	inner Expr
}

func (n not) SQL() string { return "(NOT " + n.inner.SQL() + ")" }

// Not negates a predicate.
func Not(inner Expr) Expr { return not{inner: inner} }

// call renders a function invocation.
type call struct {
	name string
	args []Expr
}

func (c call) SQL() string {
	rendered := make([]string, len(c.args))
	for i, a := range c.args {
		rendered[i] = a.SQL()
	}
	return c.name + "(" + strings.Join(rendered, ", ") + ")"
}

// Func builds a function call, e.g. Func("levenshtein", L("name"), R("name")).
func Func(name string, args ...Expr) Expr { return call{name: name, args: args} }

// raw is an opaque SQL fragment.
type raw struct {
	sql string
}

func (r raw) SQL() string { return r.sql }

// Raw wraps an opaque SQL fragment. Raw join conditions are always
// classified as slow because their shape is unknown.
func Raw(sql string) Expr { return raw{sql: sql} }

// Key builds the canonical key-blocking condition: equality of the
// same-named column on both sides of a pair.
func Key(name string) Expr { return Eq(L(name), R(name)) }

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
