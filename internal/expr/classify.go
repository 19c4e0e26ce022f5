// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package expr

// JoinKind classifies how a join condition can be executed.
type JoinKind int

const (
	// JoinFast means the condition contains an equality between a left
	// and a right column, so the engine can evaluate it as a hash join.
	JoinFast JoinKind = iota
	// JoinSlow means the condition requires a full cross product.
	JoinSlow
)

// String returns the kind name for logs and errors.
func (k JoinKind) String() string {
	if k == JoinFast {
		return "fast"
	}
	return "slow"
}

// ClassifyJoin inspects a join condition and decides whether it can be
// evaluated as an equality-based join or degrades to a cross product.
//
// The rules, applied structurally:
//
//   - equality between a left column and a right column: fast
//   - conjunction (AND): fast if at least one conjunct is fast, because
//     that conjunct alone bounds the join
//   - disjunction (OR), constant booleans, raw fragments, function calls
//     and every non-equality comparison: slow
func ClassifyJoin(condition Expr) JoinKind {
	switch e := condition.(type) {
	case binary:
		if e.op == "=" && isSidedPair(e.a, e.b) {
			return JoinFast
		}
		return JoinSlow
	case logical:
		if e.op != "AND" {
			return JoinSlow
		}
		for _, part := range e.parts {
			if ClassifyJoin(part) == JoinFast {
				return JoinFast
			}
		}
		return JoinSlow
	default:
		return JoinSlow
	}
}

// isSidedPair reports whether the operands are column references on
// opposite sides of the pair, in either order.
func isSidedPair(a, b Expr) bool {
	ca, ok := a.(column)
	if !ok {
		return false
	}
	cb, ok := b.(column)
	if !ok {
		return false
	}
	return (ca.side == SideLeft && cb.side == SideRight) ||
		(ca.side == SideRight && cb.side == SideLeft)
}
