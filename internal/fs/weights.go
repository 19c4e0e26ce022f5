// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

// Package fs implements the Fellegi-Sunter model: it estimates, per
// comparison level, the probability of that level among true matches (m)
// and among true non-matches (u), and combines them into log-odds weights
// that score candidate pairs.
package fs

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/linkforge/linkforge/internal/compare"
	"github.com/linkforge/linkforge/internal/engine"
	"github.com/linkforge/linkforge/internal/expr"
)

// LevelWeights holds the trained probabilities for one comparison level.
// M and U live in (0, 1]; zero-observation levels are smoothed before the
// proportions are computed, so neither is ever exactly zero.
type LevelWeights struct {
	// Level is the level name within its comparison.
	Level string `json:"level" validate:"required"`
	// M is the probability of this level given a true match.
	M float64 `json:"m" validate:"gt=0,lte=1"`
	// U is the probability of this level given a true non-match.
	U float64 `json:"u" validate:"gt=0,lte=1"`
}

// Weight returns the log-odds contribution of the level: log2(m/u).
func (lw LevelWeights) Weight() float64 {
	return math.Log2(lw.M / lw.U)
}

// ComparerWeights holds the trained weights of one comparison, in the
// comparison's declared level order. The else level is the implicit
// reference level and is not reported.
type ComparerWeights struct {
	Name   string         `json:"name" validate:"required"`
	Levels []LevelWeights `json:"levels" validate:"dive"`
}

// Weights is the trained model: one ComparerWeights per comparison,
// keyed by comparison name. It is an immutable value object that can be
// persisted and reloaded independent of any live dataset.
type Weights struct {
	comparers []ComparerWeights
	byName    map[string]ComparerWeights
}

// NewWeights assembles a model from per-comparison weights.
// Comparison names must be unique.
func NewWeights(comparers []ComparerWeights) (*Weights, error) {
	byName := make(map[string]ComparerWeights, len(comparers))
	for _, cw := range comparers {
		if _, dup := byName[cw.Name]; dup {
			return nil, fmt.Errorf("duplicate comparison name %q in weights", cw.Name)
		}
		byName[cw.Name] = cw
	}
	return &Weights{comparers: append([]ComparerWeights(nil), comparers...), byName: byName}, nil
}

// Comparers returns the per-comparison weights in training order.
func (w *Weights) Comparers() []ComparerWeights {
	return append([]ComparerWeights(nil), w.comparers...)
}

// Get looks up the weights for a comparison by name.
func (w *Weights) Get(name string) (ComparerWeights, error) {
	cw, ok := w.byName[name]
	if !ok {
		return ComparerWeights{}, fmt.Errorf("%w: %q", compare.ErrComparisonNotFound, name)
	}
	return cw, nil
}

// ScorePairs appends a match_weight column to a labeled pair table: the
// sum over all comparisons of the matched level's log2(m/u), with the else
// level contributing zero as the reference. Scoring reuses persisted
// weights; no retraining is needed.
func (w *Weights) ScorePairs(labeled engine.Relation) engine.Relation {
	if len(w.comparers) == 0 {
		return labeled.DB().Relation(fmt.Sprintf(
			"SELECT *, 0.0 AS match_weight FROM %s", labeled.Sub()))
	}
	terms := make([]string, 0, len(w.comparers))
	for _, cw := range w.comparers {
		var sb strings.Builder
		sb.WriteString("CASE " + quoteIdent(cw.Name))
		for _, lw := range cw.Levels {
			fmt.Fprintf(&sb, " WHEN %s THEN %v", expr.Lit(lw.Level).SQL(), lw.Weight())
		}
		sb.WriteString(" ELSE 0.0 END")
		terms = append(terms, sb.String())
	}
	return labeled.DB().Relation(fmt.Sprintf(
		"SELECT *, (%s) AS match_weight FROM %s",
		strings.Join(terms, " + "), labeled.Sub(),
	))
}

// weightsDocument is the persisted JSON shape.
type weightsDocument struct {
	Comparisons []comparerDocument `json:"comparisons" validate:"dive"`
}

// comparerDocument persists one comparison with the derived weight
// alongside m and u so consumers can audit the log-odds.
type comparerDocument struct {
	Name   string          `json:"name" validate:"required"`
	Levels []levelDocument `json:"levels" validate:"dive"`
}

type levelDocument struct {
	Level  string  `json:"level" validate:"required"`
	M      float64 `json:"m" validate:"gt=0,lte=1"`
	U      float64 `json:"u" validate:"gt=0,lte=1"`
	Weight float64 `json:"weight"`
}

var validate = validator.New()

// MarshalJSON serializes the model as an ordered document of
// {level, m, u, weight} records per comparison.
func (w *Weights) MarshalJSON() ([]byte, error) {
	doc := weightsDocument{Comparisons: make([]comparerDocument, 0, len(w.comparers))}
	for _, cw := range w.comparers {
		cd := comparerDocument{Name: cw.Name, Levels: make([]levelDocument, 0, len(cw.Levels))}
		for _, lw := range cw.Levels {
			cd.Levels = append(cd.Levels, levelDocument{
				Level:  lw.Level,
				M:      lw.M,
				U:      lw.U,
				Weight: lw.Weight(),
			})
		}
		doc.Comparisons = append(doc.Comparisons, cd)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON loads and validates a persisted model.
func (w *Weights) UnmarshalJSON(data []byte) error {
	var doc weightsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse weights document: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("invalid weights document: %w", err)
	}

	comparers := make([]ComparerWeights, 0, len(doc.Comparisons))
	for _, cd := range doc.Comparisons {
		cw := ComparerWeights{Name: cd.Name, Levels: make([]LevelWeights, 0, len(cd.Levels))}
		for _, ld := range cd.Levels {
			cw.Levels = append(cw.Levels, LevelWeights{Level: ld.Level, M: ld.M, U: ld.U})
		}
		comparers = append(comparers, cw)
	}
	loaded, err := NewWeights(comparers)
	if err != nil {
		return err
	}
	*w = *loaded
	return nil
}

// WriteFile persists the model to a JSON file.
func (w *Weights) WriteFile(path string) error {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize weights: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write weights file: %w", err)
	}
	return nil
}

// ReadWeightsFile loads a persisted model from a JSON file.
func ReadWeightsFile(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	w := &Weights{}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, err
	}
	return w, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
