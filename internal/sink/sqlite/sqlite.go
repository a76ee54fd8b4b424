//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package sqlite implements the star-schema sink on SQLite using the pure Go
// modernc.org/sqlite driver.
//
// SQLite has no native date or timestamp types. Date columns are declared
// DATE and hold YYYY-MM-DD text, timestamp columns are declared TIMESTAMP and
// hold RFC3339Nano text, so they sort and parse reliably.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/pgEdge/pgedge-retailstar/internal/logging"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
)

// Kind is the registry name of this backend.
const Kind = "sqlite"

// DateLayout is the text form of DATE columns.
const DateLayout = "2006-01-02"

var typeNames = map[sink.ColumnType]string{
	sink.Integer:   "INTEGER",
	sink.BigInt:    "INTEGER",
	sink.Text:      "TEXT",
	sink.Date:      "DATE",
	sink.Timestamp: "TIMESTAMP",
	sink.Double:    "REAL",
}

func init() {
	sink.Register(Kind, Open)
}

// Sink writes the star schema to a SQLite database file.
type Sink struct {
	db    *sql.DB
	batch sink.BatchConfig
	log   zerolog.Logger

	// types caches column types per table so BulkInsert can render date
	// values differently from timestamps.
	typesMu sync.Mutex
	types   map[string]map[string]sink.ColumnType
}

// Open opens the database at cfg.DSN (a file path or ":memory:").
func Open(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared between calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	batch := cfg.Batch
	if batch.BatchSize <= 0 {
		batch = sink.DefaultBatchConfig()
	}
	return &Sink{
		db:    db,
		batch: batch,
		log:   logging.Component("sink.sqlite"),
		types: make(map[string]map[string]sink.ColumnType),
	}, nil
}

// Close closes the database.
func (s *Sink) Close() {
	_ = s.db.Close()
}

// DB exposes the underlying handle for inspection.
func (s *Sink) DB() *sql.DB {
	return s.db
}

// EnsureSchema creates the tables and records their column types.
func (s *Sink) EnsureSchema(ctx context.Context, tables []sink.TableSpec, dropExisting bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if dropExisting {
		for i := len(tables) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident(tables[i].Name)); err != nil {
				return fmt.Errorf("failed to drop table %s: %w", tables[i].Name, err)
			}
		}
	}

	for _, t := range tables {
		stmt, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, t := range tables {
		cols := make(map[string]sink.ColumnType, len(t.Columns))
		for _, c := range t.Columns {
			cols[c.Name] = c.Type
		}
		s.cacheTypes(t.Name, cols)
	}
	return nil
}

func (s *Sink) cacheTypes(table string, cols map[string]sink.ColumnType) {
	s.typesMu.Lock()
	defer s.typesMu.Unlock()
	s.types[table] = cols
}

func (s *Sink) cachedTypes(table string) (map[string]sink.ColumnType, bool) {
	s.typesMu.Lock()
	defer s.typesMu.Unlock()
	cols, ok := s.types[table]
	return cols, ok
}

// columnTypes returns the cached column types of table, reading the declared
// types from the catalog when the schema was created by another process.
func (s *Sink) columnTypes(ctx context.Context, tx *sql.Tx, table string) (map[string]sink.ColumnType, error) {
	if cols, ok := s.cachedTypes(table); ok {
		return cols, nil
	}

	rows, err := tx.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]sink.ColumnType)
	for rows.Next() {
		var name, decl string
		if err := rows.Scan(&name, &decl); err != nil {
			return nil, err
		}
		switch strings.ToUpper(decl) {
		case "DATE":
			cols[name] = sink.Date
		case "TIMESTAMP":
			cols[name] = sink.Timestamp
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		s.cacheTypes(table, cols)
	}
	return cols, nil
}

// Begin starts a database transaction.
func (s *Sink) Begin(ctx context.Context) (sink.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &txn{tx: tx, sink: s}, nil
}

type txn struct {
	tx   *sql.Tx
	sink *Sink
}

func (t *txn) Truncate(ctx context.Context, table string) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+ident(table)); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table, err)
	}
	return nil
}

func (t *txn) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	types, err := t.sink.columnTypes(ctx, t.tx, table)
	if err != nil {
		return 0, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	stmt, err := t.tx.PrepareContext(ctx, buildInsertSQL(table, columns))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()
	progress := sink.NewProgressReporter(t.sink.log, table, int64(len(rows)), t.sink.batch.ProgressInterval)
	args := make([]any, len(columns))
	for _, batch := range sink.Batches(rows, t.sink.batch.BatchSize) {
		for _, row := range batch {
			if len(row) != len(columns) {
				return progress.Rows(), fmt.Errorf("insert into %s: row has %d values, expected %d", table, len(row), len(columns))
			}
			for i, v := range row {
				args[i] = encode(v, types[columns[i]])
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return progress.Rows(), fmt.Errorf("failed to insert into %s: %w", table, err)
			}
		}
		progress.Update(int64(len(batch)))
	}
	progress.Done()
	return progress.Rows(), nil
}

func (t *txn) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

func (t *txn) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// encode converts time values to their text forms.
func encode(v any, typ sink.ColumnType) any {
	ts, ok := v.(time.Time)
	if !ok {
		return v
	}
	if typ == sink.Date {
		return ts.Format(DateLayout)
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func buildCreateSQL(t sink.TableSpec) (string, error) {
	defs, err := sink.ColumnDefs(t, ident, typeNames)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident(t.Name), defs), nil
}

func buildInsertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ident(c)
	}
	ph := strings.TrimRight(strings.Repeat("?,", len(columns)), ",")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ident(table), strings.Join(quoted, ", "), ph)
}
