//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package mssql implements the star-schema sink on SQL Server using the
// go-mssqldb driver and its bulk copy support.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-retailstar/internal/logging"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
)

// Kind is the registry name of this backend.
const Kind = "mssql"

var columnTypes = map[sink.ColumnType]string{
	sink.Integer:   "INT",
	sink.BigInt:    "BIGINT",
	sink.Text:      "NVARCHAR(4000)",
	sink.Date:      "DATE",
	sink.Timestamp: "DATETIME2",
	sink.Double:    "FLOAT",
}

func init() {
	sink.Register(Kind, Open)
}

// Sink writes the star schema to SQL Server.
type Sink struct {
	db    *sql.DB
	batch sink.BatchConfig
	log   zerolog.Logger
}

// Open connects using a sqlserver:// DSN.
func Open(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
	log := logging.Component("sink.mssql")

	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlserver connection: %w", err)
	}
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Connected to database")

	return &Sink{db: db, batch: cfg.Batch, log: log}, nil
}

// Close closes the database handle.
func (s *Sink) Close() {
	_ = s.db.Close()
}

// EnsureSchema creates missing tables, dropping them first when asked.
func (s *Sink) EnsureSchema(ctx context.Context, tables []sink.TableSpec, dropExisting bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if dropExisting {
		for i := len(tables) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, buildDropSQL(tables[i].Name)); err != nil {
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
		s.log.Debug().Str("table", t.Name).Msg("Ensured table")
	}

	return tx.Commit()
}

// Begin starts a database transaction.
func (s *Sink) Begin(ctx context.Context) (sink.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &txn{tx: tx, batch: s.batch, log: s.log}, nil
}

type txn struct {
	tx    *sql.Tx
	batch sink.BatchConfig
	log   zerolog.Logger
}

func (t *txn) Truncate(ctx context.Context, table string) error {
	if _, err := t.tx.ExecContext(ctx, "TRUNCATE TABLE "+tableIdent(table)); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table, err)
	}
	return nil
}

// BulkInsert streams rows through the driver's bulk copy. Each batch is a
// separate bulk operation so progress can be reported between them.
func (t *txn) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	progress := sink.NewProgressReporter(t.log, table, int64(len(rows)), t.batch.ProgressInterval)
	for _, batch := range sink.Batches(rows, t.batch.BatchSize) {
		n, err := t.copyIn(ctx, table, columns, batch)
		if err != nil {
			return progress.Rows(), fmt.Errorf("failed to bulk copy into %s: %w", table, err)
		}
		progress.Update(n)
	}
	progress.Done()
	return progress.Rows(), nil
}

func (t *txn) copyIn(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := t.tx.PrepareContext(ctx, mssqldb.CopyIn(table, mssqldb.BulkOptions{Tablock: true}, columns...))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, err
		}
	}

	// An Exec without arguments flushes the buffered rows.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
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

func ident(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// tableIdent quotes each part of a schema-qualified name: dbo.d_date -> [dbo].[d_date].
func tableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = ident(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func buildCreateSQL(t sink.TableSpec) (string, error) {
	defs, err := sink.ColumnDefs(t, ident, columnTypes)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(t.Name, "'", "''"),
		tableIdent(t.Name),
		defs,
	), nil
}

func buildDropSQL(name string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;",
		strings.ReplaceAll(name, "'", "''"),
		tableIdent(name),
	)
}
