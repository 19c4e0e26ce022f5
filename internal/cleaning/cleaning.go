// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

// Package cleaning provides stateless field-normalization expressions for
// common linkage attributes. Each helper builds a pure SQL expression over
// a column; nothing here executes or holds state.
package cleaning

import (
	"github.com/linkforge/linkforge/internal/expr"
)

// NormalizeName normalizes a raw name field for comparison: uppercase,
// non-alphanumeric runs collapsed to single spaces, surrounding whitespace
// trimmed. "  O'Brien-Smith " and "OBRIEN SMITH" normalize identically.
func NormalizeName(field expr.Expr) expr.Expr {
	upper := expr.Func("upper", field)
	alnum := expr.Func("regexp_replace", upper, expr.Lit("[^A-Z0-9]+"), expr.Lit(" "), expr.Lit("g"))
	collapsed := expr.Func("regexp_replace", alnum, expr.Lit(`\s+`), expr.Lit(" "), expr.Lit("g"))
	return expr.Func("trim", collapsed)
}

// NormalizeEmail normalizes an email address: lowercase and trimmed.
func NormalizeEmail(field expr.Expr) expr.Expr {
	return expr.Func("lower", expr.Func("trim", field))
}

// EmailUser extracts the user part of an email address (before the @).
func EmailUser(field expr.Expr) expr.Expr {
	return expr.Func("split_part", NormalizeEmail(field), expr.Lit("@"), expr.Lit(1))
}

// EmailDomain extracts the domain part of an email address (after the @).
func EmailDomain(field expr.Expr) expr.Expr {
	return expr.Func("split_part", NormalizeEmail(field), expr.Lit("@"), expr.Lit(2))
}

// NameTokens splits a normalized name into its distinct tokens as an array.
func NameTokens(field expr.Expr) expr.Expr {
	return expr.Func("list_distinct", expr.Func("string_split", NormalizeName(field), expr.Lit(" ")))
}
