// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

// Package engine wraps the embedded DuckDB database that executes every
// linkage plan. The rest of the module only builds SQL; all joins, sampling
// and aggregation run inside DuckDB.
//
// The central value is Relation, an immutable SQL fragment bound to a DB.
// Building a Relation never touches the database; Count, Rows, Columns and
// Materialize are the terminal operations that trigger execution.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/linkforge/linkforge/internal/config"
	"github.com/linkforge/linkforge/internal/logging"
)

// DB wraps the DuckDB connection pool.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens a DuckDB database with the configured tuning options.
// Extensions auto-install is disabled; nothing in the linkage core needs it
// and it can hang in restricted network environments.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	connStr := fmt.Sprintf("%s?threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Debug().Str("path", cfg.Path).Int("threads", numThreads).Msg("Opened DuckDB database")
	return &DB{conn: conn, path: cfg.Path}, nil
}

// OpenMemory opens an in-memory database with default tuning.
// Intended for tests and short-lived CLI runs.
func OpenMemory() (*DB, error) {
	return Open(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"})
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Exec executes a statement that returns no rows.
func (db *DB) Exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// QueryRow executes a query expected to return at most one row.
func (db *DB) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// Relation wraps a SQL query as a lazy relation bound to this database.
func (db *DB) Relation(query string) Relation {
	return Relation{db: db, query: query}
}

// Table returns a lazy relation over an existing table.
func (db *DB) Table(name string) Relation {
	return db.Relation("SELECT * FROM " + quoteIdent(name))
}

// LoadCSV creates a table from a CSV file using DuckDB's read_csv_auto
// and returns a relation over it.
func (db *DB) LoadCSV(ctx context.Context, table, path string) (Relation, error) {
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s)",
		quoteIdent(table), quoteString(path))
	if err := db.Exec(ctx, stmt); err != nil {
		return Relation{}, fmt.Errorf("failed to load CSV %s: %w", path, err)
	}
	return db.Table(table), nil
}

// CopyCSV writes a relation to a CSV file with a header row, using
// DuckDB's COPY statement.
func (db *DB) CopyCSV(ctx context.Context, rel Relation, path string) error {
	stmt := fmt.Sprintf("COPY (%s) TO %s (FORMAT CSV, HEADER)", rel.SQL(), quoteString(path))
	if err := db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to write CSV %s: %w", path, err)
	}
	return nil
}

// NewTempTable creates a uniquely named table from a query and returns its
// name. The caller releases it with DropTable once done.
func (db *DB) NewTempTable(ctx context.Context, prefix, asQuery string) (string, error) {
	name := tempTableName(prefix)
	stmt := fmt.Sprintf("CREATE TABLE %s AS %s", quoteIdent(name), asQuery)
	if err := db.Exec(ctx, stmt); err != nil {
		return "", err
	}
	return name, nil
}

// DropTable drops a table if it exists. Used to release materialized
// intermediates once a pipeline is done with them.
func (db *DB) DropTable(ctx context.Context, name string) error {
	return db.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name))
}

// tempTableName returns a collision-free name for a materialized intermediate.
func tempTableName(prefix string) string {
	return fmt.Sprintf("__lf_%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteString quotes a SQL string literal.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QueryAndScan runs a query and scans every row with the provided function.
func QueryAndScan[T any](ctx context.Context, db *DB, query string, args []interface{}, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer closeQuietly(rows)

	var results []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return results, nil
}

// closeQuietly closes a resource in cleanup paths where Close errors
// are not actionable.
func closeQuietly(closer interface{ Close() error }) {
	if closer != nil {
		_ = closer.Close()
	}
}
