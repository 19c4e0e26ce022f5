// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package fs

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/linkforge/linkforge/internal/block"
	"github.com/linkforge/linkforge/internal/compare"
	"github.com/linkforge/linkforge/internal/engine"
	"github.com/linkforge/linkforge/internal/expr"
)

// setupLabeledPair creates a labeled self-linkage fixture: records sharing
// an entity label are true matches, and matching records share a cost.
func setupLabeledPair(t *testing.T, db *engine.DB) block.DatasetPair {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`CREATE TABLE entities (record_id BIGINT, label_true VARCHAR, cost BIGINT)`,
		`INSERT INTO entities VALUES
			(1, 'A', 1), (2, 'A', 1),
			(3, 'B', 50), (4, 'B', 52),
			(5, 'C', 99)`,
	}
	for _, s := range stmts {
		if err := db.Exec(ctx, s); err != nil {
			t.Fatalf("Failed to seed test data: %v", err)
		}
	}
	return block.NewSelfPair(block.NewRecordSet(db.Table("entities"), "entities", "record_id"))
}

func costComparison(t *testing.T) *compare.Comparison {
	t.Helper()
	c, err := compare.NewComparison("cost",
		compare.NewLevel("exact", expr.Eq(expr.Col("cost_l"), expr.Col("cost_r"))),
		compare.NewLevel("close", expr.Le(expr.Func("abs", expr.Raw("cost_l - cost_r")), expr.Lit(5))),
	)
	if err != nil {
		t.Fatalf("NewComparison() failed: %v", err)
	}
	return c
}

func TestEstimateMRequiresLabelColumn(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Exec(ctx, "CREATE TABLE unlabeled AS SELECT 1 AS record_id, 5 AS cost"); err != nil {
		t.Fatalf("Failed to seed table: %v", err)
	}
	pair := block.NewSelfPair(block.NewRecordSet(db.Table("unlabeled"), "unlabeled", "record_id"))

	_, err := EstimateM(ctx, costComparison(t), pair, Options{})
	if !errors.Is(err, ErrMissingLabelColumn) {
		t.Errorf("Expected ErrMissingLabelColumn, got %v", err)
	}
}

func TestEstimateMAndU(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	pair := setupLabeledPair(t, db)
	c := costComparison(t)
	seed := uint64(42)
	opts := Options{Seed: &seed}

	ms, err := EstimateM(ctx, c, pair, opts)
	if err != nil {
		t.Fatalf("EstimateM() failed: %v", err)
	}
	us, err := EstimateU(ctx, c, pair, opts)
	if err != nil {
		t.Fatalf("EstimateU() failed: %v", err)
	}

	// One proportion per level including else, each in (0, 1), summing to 1.
	if len(ms) != c.Len() || len(us) != c.Len() {
		t.Fatalf("Got %d m and %d u estimates, want %d", len(ms), len(us), c.Len())
	}
	assertProportions(t, "m", ms)
	assertProportions(t, "u", us)

	// Label-blocked pairs mostly share a cost; random pairs mostly do not.
	if ms[0] <= us[0] {
		t.Errorf("Expected m[exact]=%v > u[exact]=%v on matching-cost entities", ms[0], us[0])
	}
}

func TestTrainingDeterministicUnderSeed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	pair := setupLabeledPair(t, db)
	c := costComparison(t)
	seed := uint64(7)
	opts := Options{Seed: &seed}

	first, err := TrainComparison(ctx, c, pair, opts)
	if err != nil {
		t.Fatalf("First training run failed: %v", err)
	}
	second, err := TrainComparison(ctx, c, pair, opts)
	if err != nil {
		t.Fatalf("Second training run failed: %v", err)
	}

	if len(first.Levels) != len(second.Levels) {
		t.Fatalf("Level counts differ: %d vs %d", len(first.Levels), len(second.Levels))
	}
	for i := range first.Levels {
		if first.Levels[i] != second.Levels[i] {
			t.Errorf("Level %d differs: %+v vs %+v", i, first.Levels[i], second.Levels[i])
		}
	}
}

func TestTrainUsingLabels(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	pair := setupLabeledPair(t, db)
	seed := uint64(42)

	cost := costComparison(t)
	tag := compare.MustComparison("same_label",
		compare.NewLevel("same", expr.Eq(expr.Col("label_true_l"), expr.Col("label_true_r"))))
	cs, err := compare.NewComparisons(cost, tag)
	if err != nil {
		t.Fatalf("NewComparisons() failed: %v", err)
	}

	weights, err := TrainUsingLabels(ctx, cs, pair, Options{Seed: &seed})
	if err != nil {
		t.Fatalf("TrainUsingLabels() failed: %v", err)
	}
	if len(weights.Comparers()) != 2 {
		t.Fatalf("Trained %d comparers, want 2", len(weights.Comparers()))
	}

	// Every persisted level must carry a finite weight even where a level
	// was never observed in a pass (smoothing guarantees m, u > 0).
	for _, cw := range weights.Comparers() {
		for _, lw := range cw.Levels {
			if lw.M <= 0 || lw.M > 1 || lw.U <= 0 || lw.U > 1 {
				t.Errorf("%s/%s: m=%v u=%v outside (0, 1]", cw.Name, lw.Level, lw.M, lw.U)
			}
			if w := lw.Weight(); math.IsInf(w, 0) || math.IsNaN(w) {
				t.Errorf("%s/%s: non-finite weight %v", cw.Name, lw.Level, w)
			}
		}
	}

	// The else level is the reference and is never persisted.
	cw, err := weights.Get("cost")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if len(cw.Levels) != 2 {
		t.Errorf("Persisted %d levels, want 2 (else excluded)", len(cw.Levels))
	}
	for _, lw := range cw.Levels {
		if lw.Level == compare.ElseLevel {
			t.Errorf("Else level leaked into persisted weights")
		}
	}
}

func TestTrainRespectsMaxPairs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	pair := setupLabeledPair(t, db)
	seed := uint64(1)

	// A tiny pair budget must still produce a complete, finite model.
	cw, err := TrainComparison(ctx, costComparison(t), pair, Options{MaxPairs: 2, Seed: &seed})
	if err != nil {
		t.Fatalf("TrainComparison() failed: %v", err)
	}
	if len(cw.Levels) != 2 {
		t.Errorf("Got %d levels, want 2", len(cw.Levels))
	}
	for _, lw := range cw.Levels {
		if w := lw.Weight(); math.IsInf(w, 0) || math.IsNaN(w) {
			t.Errorf("Level %q has non-finite weight %v", lw.Level, w)
		}
	}
}

func TestMakeWeightsLevelCountMismatch(t *testing.T) {
	c := costComparison(t)
	good := []float64{0.5, 0.3, 0.2}

	if _, err := MakeWeights(c, good[:2], good); !errors.Is(err, ErrLevelCountMismatch) {
		t.Errorf("Expected ErrLevelCountMismatch for short m, got %v", err)
	}
	if _, err := MakeWeights(c, good, good[:1]); !errors.Is(err, ErrLevelCountMismatch) {
		t.Errorf("Expected ErrLevelCountMismatch for short u, got %v", err)
	}

	cw, err := MakeWeights(c, good, good)
	if err != nil {
		t.Fatalf("MakeWeights() failed: %v", err)
	}
	if len(cw.Levels) != 2 {
		t.Errorf("Got %d levels, want 2 (else dropped)", len(cw.Levels))
	}
}

func TestOptionDefaults(t *testing.T) {
	var o Options
	if got := o.maxPairs(); got != defaultMaxPairs {
		t.Errorf("maxPairs() = %d, want %d", got, defaultMaxPairs)
	}
	if got := o.labelColumn(); got != "label_true" {
		t.Errorf("labelColumn() = %q, want %q", got, "label_true")
	}

	o = Options{MaxPairs: 10, LabelColumn: "entity"}
	if got := o.maxPairs(); got != 10 {
		t.Errorf("maxPairs() = %d, want 10", got)
	}
	if got := o.labelColumn(); got != "entity" {
		t.Errorf("labelColumn() = %q, want %q", got, "entity")
	}
}

// assertProportions checks smoothed level proportions: all positive, below
// one, summing to one.
func assertProportions(t *testing.T, name string, ps []float64) {
	t.Helper()
	var sum float64
	for i, p := range ps {
		if p <= 0 || p >= 1 {
			t.Errorf("%s[%d] = %v outside (0, 1)", name, i, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("%s proportions sum to %v, want 1", name, sum)
	}
}
