// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package fs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/linkforge/linkforge/internal/block"
	"github.com/linkforge/linkforge/internal/compare"
	"github.com/linkforge/linkforge/internal/engine"
	"github.com/linkforge/linkforge/internal/logging"
	"github.com/linkforge/linkforge/internal/metrics"
)

// Training errors, checked with errors.Is.
var (
	// ErrMissingLabelColumn marks a dataset without the ground-truth
	// label column needed for m-estimation.
	ErrMissingLabelColumn = errors.New("ground-truth label column missing")
	// ErrLevelCountMismatch marks inconsistent level counts between the
	// m and u estimation passes. This is fatal: it means the two passes
	// did not run against the same comparison definition.
	ErrLevelCountMismatch = errors.New("mismatched level counts between m and u estimates")
)

// defaultMaxPairs bounds an estimation pass when the caller does not.
// More pairs give more accurate estimates at the cost of runtime.
const defaultMaxPairs = 1_000_000

// Options configures a training run.
type Options struct {
	// MaxPairs bounds the pairs sampled per estimation pass.
	// 0 uses the default of one million.
	MaxPairs int64

	// Seed makes sampling reproducible. nil draws fresh samples.
	Seed *uint64

	// LabelColumn is the ground-truth entity-label column used for
	// m-estimation. Empty defaults to "label_true".
	LabelColumn string
}

func (o Options) maxPairs() int64 {
	if o.MaxPairs <= 0 {
		return defaultMaxPairs
	}
	return o.MaxPairs
}

func (o Options) labelColumn() string {
	if o.LabelColumn == "" {
		return "label_true"
	}
	return o.LabelColumn
}

// EstimateU estimates, per level, the probability of that level among true
// non-matches, by labeling a uniform random sample of the full pair product.
//
// The estimate rests on the assumption that an unconditioned random pair
// from large datasets is overwhelmingly a non-match. That is a documented
// approximation, not a guarantee; its accuracy grows with MaxPairs and with
// dataset size. Proportions are returned in declared level order, the else
// level last.
func EstimateU(ctx context.Context, c *compare.Comparison, pair block.DatasetPair, opts Options) ([]float64, error) {
	defer observeTraining("u")()

	maxPairs := opts.maxPairs()
	blocker := block.SamplingBlocker{MaxPairs: &maxPairs, Seed: opts.Seed}
	blocking, err := blocker.Block(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("u-estimation sampling failed: %w", err)
	}
	data, err := blocking.Data(ctx)
	if err != nil {
		return nil, err
	}
	return levelProportions(ctx, c, data)
}

// EstimateM estimates, per level, the probability of that level among true
// matches, using the ground-truth label column present on both sides:
// pairs sharing a label are true matches. Records with a NULL label are
// ignored by the key join. The true-match pairs are subsampled down to
// MaxPairs uniformly without replacement.
func EstimateM(ctx context.Context, c *compare.Comparison, pair block.DatasetPair, opts Options) ([]float64, error) {
	defer observeTraining("m")()

	label := opts.labelColumn()
	if err := requireColumn(ctx, pair.Left, label); err != nil {
		return nil, err
	}
	if err := requireColumn(ctx, pair.Right, label); err != nil {
		return nil, err
	}

	blocking, err := block.NewKeyBlocker(label).Block(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("m-estimation blocking failed: %w", err)
	}
	data, err := blocking.Data(ctx)
	if err != nil {
		return nil, err
	}

	nPairs, err := data.Count(ctx)
	if err != nil {
		return nil, err
	}
	if nPairs > opts.maxPairs() {
		nPairs = opts.maxPairs()
	}
	sample, err := data.Sample(ctx, nPairs, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("m-estimation subsampling failed: %w", err)
	}
	return levelProportions(ctx, c, sample)
}

// TrainComparison estimates m and u for one comparison and assembles its
// weights.
func TrainComparison(ctx context.Context, c *compare.Comparison, pair block.DatasetPair, opts Options) (ComparerWeights, error) {
	ms, err := EstimateM(ctx, c, pair, opts)
	if err != nil {
		return ComparerWeights{}, err
	}
	us, err := EstimateU(ctx, c, pair, opts)
	if err != nil {
		return ComparerWeights{}, err
	}
	return MakeWeights(c, ms, us)
}

// TrainUsingLabels trains every comparison in the collection against the
// same labeled dataset pair and assembles the full model.
func TrainUsingLabels(ctx context.Context, cs *compare.Comparisons, pair block.DatasetPair, opts Options) (*Weights, error) {
	comparers := make([]ComparerWeights, 0, cs.Len())
	for _, c := range cs.All() {
		cw, err := TrainComparison(ctx, c, pair, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to train comparison %q: %w", c.Name(), err)
		}
		comparers = append(comparers, cw)
	}
	return NewWeights(comparers)
}

// MakeWeights zips per-level m and u estimates into ComparerWeights,
// dropping the trailing else level: it is the reference level whose
// contribution is folded into the score baseline. The estimates must cover
// the same levels in the same order.
func MakeWeights(c *compare.Comparison, ms, us []float64) (ComparerWeights, error) {
	levels := c.Levels()
	if len(ms) != len(levels) || len(us) != len(levels) {
		return ComparerWeights{}, fmt.Errorf("%w: comparison %q has %d levels, got %d m and %d u estimates",
			ErrLevelCountMismatch, c.Name(), len(levels), len(ms), len(us))
	}

	lws := make([]LevelWeights, 0, len(levels)-1)
	for i, lv := range levels {
		if lv.Name() == compare.ElseLevel {
			continue
		}
		lws = append(lws, LevelWeights{Level: lv.Name(), M: ms[i], U: us[i]})
	}
	return ComparerWeights{Name: c.Name(), Levels: lws}, nil
}

// levelProportions labels the pair table with the comparison and returns
// the share of pairs falling into each level, in declared order with else
// last.
//
// A level observed zero times is assigned a pseudo-count of one before the
// proportions are computed. A zero count would otherwise produce log2(0)
// or log2(m/0) weights; pretending we saw the level once keeps every
// weight finite. This smoothing is a documented approximation, not an
// error condition.
func levelProportions(ctx context.Context, c *compare.Comparison, pairs engine.Relation) ([]float64, error) {
	labeled := c.LabelPairs(pairs, compare.ByName)
	query := fmt.Sprintf("SELECT %s AS level, COUNT(*) AS n FROM %s GROUP BY level",
		quoteIdent(c.Name()), labeled.Sub())

	type levelCount struct {
		level string
		n     int64
	}
	rows, err := engine.QueryAndScan(ctx, pairs.DB(), query, nil, func(r *sql.Rows) (levelCount, error) {
		var lc levelCount
		err := r.Scan(&lc.level, &lc.n)
		return lc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate level counts: %w", err)
	}

	counts := make(map[string]int64, c.Len())
	for _, lc := range rows {
		counts[lc.level] = lc.n
	}

	levels := c.Levels()
	var total int64
	for _, lv := range levels {
		if counts[lv.Name()] == 0 {
			counts[lv.Name()] = 1
			logging.Debug().
				Str("comparison", c.Name()).
				Str("level", lv.Name()).
				Msg("Level unobserved in sample; smoothing with pseudo-count 1")
		}
		total += counts[lv.Name()]
	}

	proportions := make([]float64, len(levels))
	for i, lv := range levels {
		proportions[i] = float64(counts[lv.Name()]) / float64(total)
	}
	return proportions, nil
}

// requireColumn verifies the record set carries the given column.
func requireColumn(ctx context.Context, rs block.RecordSet, column string) error {
	cols, err := rs.Relation().Columns(ctx)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("%w: record set %q has no column %q (found %v)", ErrMissingLabelColumn, rs.Name(), column, cols)
}

// observeTraining records a training pass in the metrics.
func observeTraining(parameter string) func() {
	metrics.TrainingRuns.WithLabelValues(parameter).Inc()
	start := time.Now()
	return func() {
		metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	}
}
