// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package fs

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/linkforge/linkforge/internal/engine"
)

func setupTestDB(t *testing.T) *engine.DB {
	t.Helper()
	db, err := engine.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testWeights(t *testing.T) *Weights {
	t.Helper()
	w, err := NewWeights([]ComparerWeights{
		{Name: "cost", Levels: []LevelWeights{
			{Level: "exact", M: 0.9, U: 0.1},
			{Level: "close", M: 0.05, U: 0.2},
		}},
		{Name: "tag", Levels: []LevelWeights{
			{Level: "same", M: 0.8, U: 0.4},
		}},
	})
	if err != nil {
		t.Fatalf("NewWeights() failed: %v", err)
	}
	return w
}

func TestLevelWeight(t *testing.T) {
	tests := []struct {
		name     string
		lw       LevelWeights
		expected float64
	}{
		{"evidence for", LevelWeights{M: 0.9, U: 0.1}, math.Log2(9)},
		{"evidence against", LevelWeights{M: 0.1, U: 0.8}, math.Log2(0.125)},
		{"no evidence", LevelWeights{M: 0.5, U: 0.5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lw.Weight(); math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Weight() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewWeightsRejectsDuplicates(t *testing.T) {
	cw := ComparerWeights{Name: "cost"}
	if _, err := NewWeights([]ComparerWeights{cw, cw}); err == nil {
		t.Error("Expected error for duplicate comparison names")
	}
}

func TestWeightsGet(t *testing.T) {
	w := testWeights(t)

	cw, err := w.Get("tag")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if cw.Name != "tag" || len(cw.Levels) != 1 {
		t.Errorf("Get() returned %+v", cw)
	}
	if _, err := w.Get("missing"); err == nil {
		t.Error("Expected error for unknown comparison")
	}
}

func TestWeightsJSONRoundTrip(t *testing.T) {
	w := testWeights(t)

	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var loaded Weights
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	orig := w.Comparers()
	got := loaded.Comparers()
	if len(got) != len(orig) {
		t.Fatalf("Round trip lost comparers: %d vs %d", len(got), len(orig))
	}
	for i := range orig {
		if got[i].Name != orig[i].Name || len(got[i].Levels) != len(orig[i].Levels) {
			t.Errorf("Comparer %d = %+v, want %+v", i, got[i], orig[i])
		}
		for j := range orig[i].Levels {
			if got[i].Levels[j] != orig[i].Levels[j] {
				t.Errorf("Level %d/%d = %+v, want %+v", i, j, got[i].Levels[j], orig[i].Levels[j])
			}
		}
	}
}

func TestWeightsUnmarshalRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"zero u", `{"comparisons":[{"name":"c","levels":[{"level":"x","m":0.5,"u":0}]}]}`},
		{"m above one", `{"comparisons":[{"name":"c","levels":[{"level":"x","m":1.5,"u":0.5}]}]}`},
		{"missing level name", `{"comparisons":[{"name":"c","levels":[{"m":0.5,"u":0.5}]}]}`},
		{"garbage", `{"comparisons": 12}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w Weights
			if err := json.Unmarshal([]byte(tt.doc), &w); err == nil {
				t.Error("Expected invalid document to be rejected")
			}
		})
	}
}

func TestWeightsFileRoundTrip(t *testing.T) {
	w := testWeights(t)
	path := filepath.Join(t.TempDir(), "weights.json")

	if err := w.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	loaded, err := ReadWeightsFile(path)
	if err != nil {
		t.Fatalf("ReadWeightsFile() failed: %v", err)
	}
	if len(loaded.Comparers()) != 2 {
		t.Errorf("Loaded %d comparers, want 2", len(loaded.Comparers()))
	}
}

func TestScorePairs(t *testing.T) {
	db := setupTestDB(t)
	w := testWeights(t)

	labeled := db.Relation(`SELECT * FROM (VALUES
		(1, 'exact', 'same'),
		(2, 'close', 'else'),
		(3, 'else', 'else')
	) t(record_id_l, "cost", "tag")`)

	scores := scanScores(t, w.ScorePairs(labeled))
	want := map[int64]float64{
		1: math.Log2(0.9/0.1) + math.Log2(0.8/0.4),
		2: math.Log2(0.05 / 0.2),
		3: 0,
	}
	for id, expected := range want {
		if got, ok := scores[id]; !ok || math.Abs(got-expected) > 1e-9 {
			t.Errorf("match_weight[%d] = %v, want %v", id, scores[id], expected)
		}
	}
}

func TestScorePairsNoComparers(t *testing.T) {
	db := setupTestDB(t)
	w, err := NewWeights(nil)
	if err != nil {
		t.Fatalf("NewWeights() failed: %v", err)
	}

	labeled := db.Relation("SELECT 1 AS record_id_l")
	scores := scanScores(t, w.ScorePairs(labeled))
	if scores[1] != 0 {
		t.Errorf("match_weight = %v, want 0", scores[1])
	}
}

// scanScores reads (record_id_l, match_weight) rows into a map.
func scanScores(t *testing.T, scored engine.Relation) map[int64]float64 {
	t.Helper()
	query := "SELECT record_id_l, match_weight FROM " + scored.Sub()
	type row struct {
		id     int64
		weight float64
	}
	rows, err := engine.QueryAndScan(context.Background(), scored.DB(), query, nil,
		func(r *sql.Rows) (row, error) {
			var v row
			err := r.Scan(&v.id, &v.weight)
			return v, err
		})
	if err != nil {
		t.Fatalf("Failed to scan scores: %v", err)
	}
	out := make(map[int64]float64, len(rows))
	for _, v := range rows {
		out[v.id] = v.weight
	}
	return out
}
