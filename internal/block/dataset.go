// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

// Package block generates candidate record pairs for comparison.
//
// Comparing every record against every other record is quadratic and
// intractable beyond small datasets. Blocking restricts the comparison to a
// candidate subset: pairs that share a key (KeyBlocker), pairs satisfying an
// arbitrary predicate (PredicateBlocker, routed through the slow-join
// policy), or a uniform random sample of the full pair product
// (SamplingBlocker, backed by PairSpace).
//
// All blockers produce a Blocking result: a deduplicated table of
// (left id, right id) pairs plus a derived view joining both sides' full
// records with _l/_r column suffixes.
package block

import (
	"context"
	"fmt"

	"github.com/linkforge/linkforge/internal/engine"
)

// RecordSet is a named tabular collection with a declared unique-id column.
// It is an immutable view; blocking never mutates the underlying records.
type RecordSet struct {
	rel      engine.Relation
	name     string
	idColumn string
}

// NewRecordSet wraps a relation as a record set keyed by idColumn.
func NewRecordSet(rel engine.Relation, name, idColumn string) RecordSet {
	return RecordSet{rel: rel, name: name, idColumn: idColumn}
}

// Relation returns the underlying lazy relation.
func (rs RecordSet) Relation() engine.Relation { return rs.rel }

// Name returns the record set name.
func (rs RecordSet) Name() string { return rs.name }

// IDColumn returns the declared unique-identifier column.
func (rs RecordSet) IDColumn() string { return rs.idColumn }

// Count returns the number of records.
func (rs RecordSet) Count(ctx context.Context) (int64, error) {
	return rs.rel.Count(ctx)
}

// CheckIDColumn verifies the declared id column exists and its values are
// non-null and unique.
func (rs RecordSet) CheckIDColumn(ctx context.Context) error {
	cols, err := rs.rel.Columns(ctx)
	if err != nil {
		return err
	}
	if !containsColumn(cols, rs.idColumn) {
		return fmt.Errorf("record set %q: id column %q not found in %v", rs.name, rs.idColumn, cols)
	}

	query := fmt.Sprintf(
		"SELECT COUNT(*), COUNT(%[1]s), COUNT(DISTINCT %[1]s) FROM %[2]s",
		quoteIdent(rs.idColumn), rs.rel.Sub())
	var total, nonNull, distinct int64
	if err := rs.rel.DB().QueryRow(ctx, query).Scan(&total, &nonNull, &distinct); err != nil {
		return fmt.Errorf("record set %q: failed to check id column: %w", rs.name, err)
	}
	if nonNull != total {
		return fmt.Errorf("record set %q: id column %q has %d null values", rs.name, rs.idColumn, total-nonNull)
	}
	if distinct != total {
		return fmt.Errorf("record set %q: id column %q has duplicate values", rs.name, rs.idColumn)
	}
	return nil
}

// DatasetPair is an ordered pair of record sets to block against each other.
// Left and Right may be the same record set for self-linkage.
type DatasetPair struct {
	Left  RecordSet
	Right RecordSet
}

// NewDatasetPair pairs two record sets for linkage.
func NewDatasetPair(left, right RecordSet) DatasetPair {
	return DatasetPair{Left: left, Right: right}
}

// NewSelfPair pairs a record set with itself for deduplication.
func NewSelfPair(rs RecordSet) DatasetPair {
	return DatasetPair{Left: rs, Right: rs}
}

// IDColumnL is the name of the left id column in a candidate-pair table.
func (p DatasetPair) IDColumnL() string { return p.Left.idColumn + "_l" }

// IDColumnR is the name of the right id column in a candidate-pair table.
func (p DatasetPair) IDColumnR() string { return p.Right.idColumn + "_r" }

func containsColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
