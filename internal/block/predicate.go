// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package block

import (
	"context"
	"fmt"

	"github.com/linkforge/linkforge/internal/expr"
	"github.com/linkforge/linkforge/internal/logging"
	"github.com/linkforge/linkforge/internal/metrics"
)

// OnSlow is the policy applied when a join condition is classified as
// requiring a full cross product.
type OnSlow string

const (
	// OnSlowIgnore proceeds silently.
	OnSlowIgnore OnSlow = "ignore"
	// OnSlowWarn proceeds but logs a warning.
	OnSlowWarn OnSlow = "warn"
	// OnSlowError aborts before the join is dispatched.
	OnSlowError OnSlow = "error"
)

// ParseOnSlow converts a policy name to an OnSlow value.
func ParseOnSlow(s string) (OnSlow, error) {
	switch OnSlow(s) {
	case OnSlowIgnore, OnSlowWarn, OnSlowError:
		return OnSlow(s), nil
	default:
		return "", fmt.Errorf("unknown slow-join policy %q (want ignore, warn or error)", s)
	}
}

// SlowJoinError reports a join condition that would require a full cross
// product under the error policy. It is distinct from schema errors so
// callers can relax the policy instead of fixing a schema.
type SlowJoinError struct {
	Condition string
}

func (e *SlowJoinError) Error() string {
	return fmt.Sprintf("join condition %q requires a full cross product (slow-join policy is error)", e.Condition)
}

// PredicateBlocker produces the candidate pairs satisfying an arbitrary
// join condition. The condition is classified before the join is
// dispatched: equality-bounded conditions run as hash joins, anything else
// is subject to the OnSlow policy.
type PredicateBlocker struct {
	// Condition is the join predicate over l./r. column references.
	Condition expr.Expr

	// OnSlow is the policy for conditions needing a cross product.
	// Empty defaults to OnSlowError.
	OnSlow OnSlow
}

// NewPredicateBlocker blocks on an arbitrary join condition with the given
// slow-join policy.
func NewPredicateBlocker(condition expr.Expr, onSlow OnSlow) PredicateBlocker {
	return PredicateBlocker{Condition: condition, OnSlow: onSlow}
}

// Block classifies the condition, applies the slow-join policy, then
// produces the deduplicated pair table.
func (pb PredicateBlocker) Block(ctx context.Context, pair DatasetPair) (*Blocking, error) {
	if pb.Condition == nil {
		return nil, fmt.Errorf("predicate blocker requires a join condition")
	}
	if err := pb.checkPolicy(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT l.%s AS %s, r.%s AS %s FROM %s l INNER JOIN %s r ON %s",
		quoteIdent(pair.Left.idColumn), quoteIdent(pair.IDColumnL()),
		quoteIdent(pair.Right.idColumn), quoteIdent(pair.IDColumnR()),
		pair.Left.rel.Sub(), pair.Right.rel.Sub(),
		pb.Condition.SQL(),
	)
	ids := pair.Left.rel.DB().Relation(query)

	blocking, err := NewBlocking(ctx, pair, ids)
	if err != nil {
		return nil, err
	}
	metrics.BlockingRuns.WithLabelValues("predicate").Inc()
	return blocking, nil
}

// checkPolicy classifies the condition and enforces the policy before any
// join executes, so the cost is paid at most once per Block call.
func (pb PredicateBlocker) checkPolicy() error {
	if expr.ClassifyJoin(pb.Condition) == expr.JoinFast {
		return nil
	}

	policy := pb.OnSlow
	if policy == "" {
		policy = OnSlowError
	}
	metrics.SlowJoins.WithLabelValues(string(policy)).Inc()

	switch policy {
	case OnSlowIgnore:
		return nil
	case OnSlowWarn:
		logging.Warn().
			Str("condition", pb.Condition.SQL()).
			Msg("Join condition requires a full cross product; consider an equality key")
		return nil
	default:
		return &SlowJoinError{Condition: pb.Condition.SQL()}
	}
}
