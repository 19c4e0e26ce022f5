// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package block

import (
	"context"
	"fmt"
	"strings"

	"github.com/linkforge/linkforge/internal/engine"
	"github.com/linkforge/linkforge/internal/logging"
	"github.com/linkforge/linkforge/internal/metrics"
)

// SamplingBlocker draws a uniform sample of candidate pairs from the full
// pair product, for workloads where enumerating every pair is infeasible.
// It is the u-estimation workhorse: a random pair from two large datasets
// is overwhelmingly a non-match.
type SamplingBlocker struct {
	// MaxPairs is the number of distinct pairs to draw. nil means every
	// pair in the product; a value at or above the product size returns
	// the full product exactly once.
	MaxPairs *int64

	// Seed makes the draw reproducible. nil draws a fresh sample each run.
	Seed *uint64

	// WarnProductSize overrides the warning threshold. 0 keeps the default.
	WarnProductSize int64
}

// insertBatchSize bounds the VALUES list length per INSERT statement.
const insertBatchSize = 5000

// Block samples candidate pairs uniformly from pair's cartesian product.
func (sb SamplingBlocker) Block(ctx context.Context, pair DatasetPair) (*Blocking, error) {
	nLeft, err := pair.Left.Count(ctx)
	if err != nil {
		return nil, err
	}
	nRight, err := pair.Right.Count(ctx)
	if err != nil {
		return nil, err
	}

	space := PairSpace{NLeft: nLeft, NRight: nRight}
	total := space.Size()

	target := total
	if sb.MaxPairs != nil && *sb.MaxPairs < total {
		target = *sb.MaxPairs
	}

	warnAt := sb.WarnProductSize
	if warnAt <= 0 {
		warnAt = WarnProductSize
	}
	if target > warnAt {
		logging.Warn().
			Int64("pairs", target).
			Int64("product_size", total).
			Msg("Sampling a very large share of the pair product; consider key or predicate blocking")
	}

	var ids engine.Relation
	if total == 0 || target >= total {
		// Nothing to sample: the full product (possibly empty) is the answer.
		ids = crossProductIDs(pair)
	} else {
		ids, err = sb.sampledIDs(ctx, pair, space, target)
		if err != nil {
			return nil, err
		}
	}

	blocking, err := NewBlocking(ctx, pair, ids)
	if err != nil {
		return nil, err
	}
	metrics.BlockingRuns.WithLabelValues("sample").Inc()
	metrics.SampledPairs.Add(float64(min64(target, total)))
	return blocking, nil
}

// crossProductIDs builds the full cartesian pair table as a lazy relation.
func crossProductIDs(pair DatasetPair) engine.Relation {
	query := fmt.Sprintf(
		"SELECT l.%s AS %s, r.%s AS %s FROM %s l CROSS JOIN %s r",
		quoteIdent(pair.Left.idColumn), quoteIdent(pair.IDColumnL()),
		quoteIdent(pair.Right.idColumn), quoteIdent(pair.IDColumnR()),
		pair.Left.rel.Sub(), pair.Right.rel.Sub(),
	)
	return pair.Left.rel.DB().Relation(query)
}

// sampledIDs draws target distinct positions from the pair space, loads
// them into a key table and maps each position back to the id values of
// the records at that position.
func (sb SamplingBlocker) sampledIDs(ctx context.Context, pair DatasetPair, space PairSpace, target int64) (engine.Relation, error) {
	indexes, err := space.SampleIndexes(target, sb.Seed)
	if err != nil {
		return engine.Relation{}, err
	}

	db := pair.Left.rel.DB()
	keys, err := loadKeyTable(ctx, db, indexes)
	if err != nil {
		return engine.Relation{}, err
	}

	// Positions are stable: records are numbered by id order on each side,
	// so identical samples map to identical pairs across runs.
	query := fmt.Sprintf(
		`SELECT l.%[1]s AS %[2]s, r.%[3]s AS %[4]s
FROM %[5]s k
INNER JOIN (SELECT %[1]s, row_number() OVER (ORDER BY %[1]s) - 1 AS __idx FROM %[6]s) l ON k.x // %[7]d = l.__idx
INNER JOIN (SELECT %[3]s, row_number() OVER (ORDER BY %[3]s) - 1 AS __idx FROM %[8]s) r ON k.x %% %[7]d = r.__idx`,
		quoteIdent(pair.Left.idColumn), quoteIdent(pair.IDColumnL()),
		quoteIdent(pair.Right.idColumn), quoteIdent(pair.IDColumnR()),
		keys.Sub(),
		pair.Left.rel.Sub(),
		space.NRight,
		pair.Right.rel.Sub(),
	)
	return db.Relation(query), nil
}

// loadKeyTable materializes sampled positions into a uniquely named table.
func loadKeyTable(ctx context.Context, db *engine.DB, indexes []int64) (engine.Relation, error) {
	name, err := db.NewTempTable(ctx, "pairkeys", "SELECT CAST(NULL AS BIGINT) AS x WHERE FALSE")
	if err != nil {
		return engine.Relation{}, err
	}

	for start := 0; start < len(indexes); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(indexes) {
			end = len(indexes)
		}
		values := make([]string, 0, end-start)
		for _, x := range indexes[start:end] {
			values = append(values, fmt.Sprintf("(%d)", x))
		}
		stmt := fmt.Sprintf("INSERT INTO %s VALUES %s", quoteIdent(name), strings.Join(values, ", "))
		if err := db.Exec(ctx, stmt); err != nil {
			return engine.Relation{}, fmt.Errorf("failed to load sampled pair keys: %w", err)
		}
	}
	return db.Table(name), nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
