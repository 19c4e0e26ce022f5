// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package block

import (
	"context"
	"fmt"
	"strings"

	"github.com/linkforge/linkforge/internal/metrics"
)

// KeyBlocker produces the candidate pairs whose key columns are equal on
// both sides. An equi-join is always index-friendly, so no slow-join policy
// applies. Records with a NULL key never pair: SQL equality on NULL is not
// true, which is exactly the behavior wanted for partially populated keys.
type KeyBlocker struct {
	// Keys are the column names that must be equal on both sides.
	Keys []string
}

// NewKeyBlocker blocks on equality of the named columns.
func NewKeyBlocker(keys ...string) KeyBlocker {
	return KeyBlocker{Keys: keys}
}

// Block produces the deduplicated equi-join pair table.
func (kb KeyBlocker) Block(ctx context.Context, pair DatasetPair) (*Blocking, error) {
	if len(kb.Keys) == 0 {
		return nil, fmt.Errorf("key blocker requires at least one key column")
	}

	conds := make([]string, len(kb.Keys))
	for i, k := range kb.Keys {
		conds[i] = fmt.Sprintf("l.%[1]s = r.%[1]s", quoteIdent(k))
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT l.%s AS %s, r.%s AS %s FROM %s l INNER JOIN %s r ON %s",
		quoteIdent(pair.Left.idColumn), quoteIdent(pair.IDColumnL()),
		quoteIdent(pair.Right.idColumn), quoteIdent(pair.IDColumnR()),
		pair.Left.rel.Sub(), pair.Right.rel.Sub(),
		strings.Join(conds, " AND "),
	)
	ids := pair.Left.rel.DB().Relation(query)

	blocking, err := NewBlocking(ctx, pair, ids)
	if err != nil {
		return nil, err
	}
	metrics.BlockingRuns.WithLabelValues("key").Inc()
	return blocking, nil
}

var (
	_ Blocker = KeyBlocker{}
	_ Blocker = SamplingBlocker{}
	_ Blocker = PredicateBlocker{}
)
