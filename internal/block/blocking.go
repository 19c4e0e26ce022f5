// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package block

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/linkforge/linkforge/internal/engine"
)

// ErrPairSchema marks a candidate-pair table whose schema is invalid.
// Check for it with errors.Is.
var ErrPairSchema = errors.New("invalid candidate-pair schema")

// Blocker determines which pairs of records should be compared.
// Implementations block either a record set against itself or two
// different record sets.
type Blocker interface {
	Block(ctx context.Context, pair DatasetPair) (*Blocking, error)
}

// Blocking holds the result of blocking a dataset pair: a deduplicated
// candidate-pair table of (left id, right id) tuples.
type Blocking struct {
	pair DatasetPair
	ids  engine.Relation

	previewOnce sync.Once
	preview     string
}

// NewBlocking wraps a candidate-pair relation, verifying it has exactly
// two columns. The first column joins the left id, the second the right id.
func NewBlocking(ctx context.Context, pair DatasetPair, ids engine.Relation) (*Blocking, error) {
	cols, err := ids.Columns(ctx)
	if err != nil {
		return nil, err
	}
	if len(cols) != 2 {
		return nil, fmt.Errorf("%w: expected 2 columns, got %d (%v)", ErrPairSchema, len(cols), cols)
	}
	return &Blocking{pair: pair, ids: ids}, nil
}

// DatasetPair returns the pair that was blocked.
func (b *Blocking) DatasetPair() DatasetPair { return b.pair }

// IDs returns the candidate-pair table as a lazy relation with exactly
// two columns: the left and right record ids.
func (b *Blocking) IDs() engine.Relation { return b.ids }

// Data returns the blocked data view: both sides' full records
// inner-joined onto the candidate pairs, left columns suffixed _l and
// right columns suffixed _r.
func (b *Blocking) Data(ctx context.Context) (engine.Relation, error) {
	return joinDatasets(ctx, b.pair, b.ids)
}

// Preview renders the first few blocked rows once per instance, for logs
// and debugging. The result is memoized on the Blocking value itself.
func (b *Blocking) Preview(ctx context.Context) string {
	b.previewOnce.Do(func() {
		b.preview = b.renderPreview(ctx)
	})
	return b.preview
}

func (b *Blocking) renderPreview(ctx context.Context) string {
	data, err := b.Data(ctx)
	if err != nil {
		return fmt.Sprintf("Blocking(error: %v)", err)
	}
	head := data.DB().Relation(data.SQL() + " LIMIT 5")
	rows, err := head.Rows(ctx)
	if err != nil {
		return fmt.Sprintf("Blocking(error: %v)", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Sprintf("Blocking(error: %v)", err)
	}
	var sb strings.Builder
	sb.WriteString("Blocking(" + strings.Join(cols, ", ") + ")")
	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			break
		}
		sb.WriteString(fmt.Sprintf("\n  %v", vals))
	}
	return sb.String()
}

// joinDatasets joins both sides of the pair onto the candidate-pair table
// so the pairs can be compared. Every non-id column of the left side is
// suffixed _l, every non-id column of the right side _r; the id columns
// come from the pair table itself.
func joinDatasets(ctx context.Context, pair DatasetPair, ids engine.Relation) (engine.Relation, error) {
	idCols, err := ids.Columns(ctx)
	if err != nil {
		return engine.Relation{}, err
	}
	if len(idCols) != 2 {
		return engine.Relation{}, fmt.Errorf("%w: expected 2 columns, got %d (%v)", ErrPairSchema, len(idCols), idCols)
	}

	leftCols, err := pair.Left.rel.Columns(ctx)
	if err != nil {
		return engine.Relation{}, err
	}
	rightCols, err := pair.Right.rel.Columns(ctx)
	if err != nil {
		return engine.Relation{}, err
	}

	projections := []string{
		"b." + quoteIdent(idCols[0]),
		"b." + quoteIdent(idCols[1]),
	}
	for _, c := range leftCols {
		if c == pair.Left.idColumn {
			continue
		}
		projections = append(projections, fmt.Sprintf("l.%s AS %s", quoteIdent(c), quoteIdent(c+"_l")))
	}
	for _, c := range rightCols {
		if c == pair.Right.idColumn {
			continue
		}
		projections = append(projections, fmt.Sprintf("r.%s AS %s", quoteIdent(c), quoteIdent(c+"_r")))
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s b INNER JOIN %s l ON b.%s = l.%s INNER JOIN %s r ON b.%s = r.%s",
		strings.Join(projections, ", "),
		ids.Sub(),
		pair.Left.rel.Sub(), quoteIdent(idCols[0]), quoteIdent(pair.Left.idColumn),
		pair.Right.rel.Sub(), quoteIdent(idCols[1]), quoteIdent(pair.Right.idColumn),
	)
	return ids.DB().Relation(query), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
