// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package engine

import (
	"context"
	"database/sql"
	"fmt"
)

// Relation is an immutable, lazily evaluated SQL query bound to a DB.
// Relations are plain values: building one performs no I/O, and the same
// Relation may be shared and reused concurrently. Execution happens only
// in the terminal methods that take a context.
type Relation struct {
	db    *DB
	query string
}

// SQL returns the query text of the relation.
func (r Relation) SQL() string {
	return r.query
}

// DB returns the database the relation is bound to.
func (r Relation) DB() *DB {
	return r.db
}

// Sub returns the relation as a parenthesized subquery fragment for
// embedding into a larger statement.
func (r Relation) Sub() string {
	return "(" + r.query + ")"
}

// Count executes SELECT COUNT(*) over the relation.
func (r Relation) Count(ctx context.Context) (int64, error) {
	var n int64
	row := r.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.Sub())
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count relation: %w", err)
	}
	return n, nil
}

// Columns returns the column names of the relation without reading any rows.
func (r Relation) Columns(ctx context.Context) ([]string, error) {
	rows, err := r.db.conn.QueryContext(ctx, "SELECT * FROM "+r.Sub()+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("failed to describe relation: %w", err)
	}
	defer closeQuietly(rows)

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read relation columns: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to describe relation: %w", err)
	}
	return cols, nil
}

// Rows executes the relation and returns the row cursor.
// The caller owns the returned rows and must close them.
func (r Relation) Rows(ctx context.Context) (*sql.Rows, error) {
	rows, err := r.db.conn.QueryContext(ctx, r.query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute relation: %w", err)
	}
	return rows, nil
}

// Materialize executes the relation into a uniquely named table and returns
// a relation over it. Materializing pins down results that would otherwise
// be recomputed (and, for random sampling, re-drawn) on every reference.
func (r Relation) Materialize(ctx context.Context, prefix string) (Relation, error) {
	name, err := r.db.NewTempTable(ctx, prefix, r.query)
	if err != nil {
		return Relation{}, fmt.Errorf("failed to materialize relation: %w", err)
	}
	return r.db.Table(name), nil
}

// seedDenominator maps an integer seed onto setseed's [0, 1) domain.
const seedDenominator = 1_000_000_007

// Sample materializes a uniform sample of n rows drawn without replacement.
// A non-nil seed makes the sample reproducible; the seed is applied with
// setseed on a pinned connection so pooling cannot break determinism.
// If the relation has fewer than n rows, all rows are returned.
func (r Relation) Sample(ctx context.Context, n int64, seed *uint64) (Relation, error) {
	name := tempTableName("sample")
	stmt := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s ORDER BY random() LIMIT %d",
		quoteIdent(name), r.Sub(), n)

	conn, err := r.db.conn.Conn(ctx)
	if err != nil {
		return Relation{}, fmt.Errorf("failed to pin connection for sampling: %w", err)
	}
	defer closeQuietly(conn)

	if seed != nil {
		setseed := float64(*seed%seedDenominator) / float64(seedDenominator)
		if _, err := conn.ExecContext(ctx, "SELECT setseed(?)", setseed); err != nil {
			return Relation{}, fmt.Errorf("failed to seed random generator: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return Relation{}, fmt.Errorf("failed to materialize sample: %w", err)
	}
	return r.db.Table(name), nil
}
