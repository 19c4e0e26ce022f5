// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package expr

import "testing"

func TestSQLRendering(t *testing.T) {
	tests := []struct {
		name     string
		expr     Expr
		expected string
	}{
		{"bare column", Col("cost_l"), `"cost_l"`},
		{"left column", L("name"), `l."name"`},
		{"right column", R("name"), `r."name"`},
		{"string literal", Lit("o'brien"), `'o''brien'`},
		{"int literal", Lit(42), `42`},
		{"bool true", Bool(true), `TRUE`},
		{"null literal", Lit(nil), `NULL`},
		{"equality", Eq(Col("cost_l"), Col("cost_r")), `("cost_l" = "cost_r")`},
		{"key condition", Key("zip"), `(l."zip" = r."zip")`},
		{"greater than", Gt(Col("cost_l"), Lit(10)), `("cost_l" > 10)`},
		{"conjunction", And(Key("zip"), Gt(Col("a"), Lit(1))), `((l."zip" = r."zip") AND ("a" > 1))`},
		{"disjunction", Or(Key("zip"), Key("city")), `((l."zip" = r."zip") OR (l."city" = r."city"))`},
		{"single operand and", And(Key("zip")), `(l."zip" = r."zip")`},
		{"empty and", And(), `TRUE`},
		{"empty or", Or(), `FALSE`},
		{"not", Not(Bool(false)), `(NOT FALSE)`},
		{"function call", Func("levenshtein", L("name"), R("name")), `levenshtein(l."name", r."name")`},
		{"raw fragment", Raw("jaro_winkler(a, b) > 0.9"), `jaro_winkler(a, b) > 0.9`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.SQL(); got != tt.expected {
				t.Errorf("SQL() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestClassifyJoin(t *testing.T) {
	tests := []struct {
		name     string
		cond     Expr
		expected JoinKind
	}{
		{"simple equijoin", Eq(L("letter"), R("letter")), JoinFast},
		{"key helper", Key("letter"), JoinFast},
		{"reversed sides", Eq(R("letter"), L("letter")), JoinFast},
		{"cross join", Bool(true), JoinSlow},
		{"constant false", Bool(false), JoinSlow},
		{"levenshtein", Lt(Func("levenshtein", L("letter"), R("letter")), Lit(2)), JoinSlow},
		{"same side equality", Eq(L("letter"), L("letter")), JoinSlow},
		{"equality to literal", Eq(L("letter"), Lit("a")), JoinSlow},
		{"range predicate", Gt(L("cost"), R("cost")), JoinSlow},
		{"OR of fast parts", Or(Key("letter"), Key("record_id")), JoinSlow},
		{"AND with fast conjunct", And(Key("letter"), Key("record_id")), JoinFast},
		{"AND fast plus slow", And(Key("letter"), Bool(true)), JoinFast},
		{"AND of slow parts", And(Bool(true), Lt(Func("levenshtein", L("a"), R("a")), Lit(2))), JoinSlow},
		{"nested AND inside OR stays slow", Or(And(Key("letter"), Key("id"))), JoinSlow},
		{"raw condition", Raw("l.a = r.a"), JoinSlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyJoin(tt.cond); got != tt.expected {
				t.Errorf("ClassifyJoin() = %v, want %v", got, tt.expected)
			}
		})
	}
}
