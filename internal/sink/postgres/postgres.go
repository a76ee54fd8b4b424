//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package postgres implements the star-schema sink on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-retailstar/internal/db"
	"github.com/pgEdge/pgedge-retailstar/internal/logging"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
)

// Kind is the registry name of this backend.
const Kind = "postgres"

var columnTypes = map[sink.ColumnType]string{
	sink.Integer:   "INTEGER",
	sink.BigInt:    "BIGINT",
	sink.Text:      "TEXT",
	sink.Date:      "DATE",
	sink.Timestamp: "TIMESTAMPTZ",
	sink.Double:    "DOUBLE PRECISION",
}

func init() {
	sink.Register(Kind, Open)
}

// Sink writes the star schema through a pgx connection pool.
type Sink struct {
	pool  *pgxpool.Pool
	batch sink.BatchConfig
	log   zerolog.Logger
}

// Open connects to PostgreSQL using cfg.DSN.
func Open(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
	log := logging.Component("sink.postgres")
	pool, err := db.Connect(ctx, cfg.DSN, log)
	if err != nil {
		return nil, err
	}
	return New(pool, cfg.Batch, log), nil
}

// New wraps an existing pool. The sink takes ownership of the pool.
func New(pool *pgxpool.Pool, batch sink.BatchConfig, log zerolog.Logger) *Sink {
	if batch.BatchSize <= 0 {
		batch = sink.DefaultBatchConfig()
	}
	return &Sink{pool: pool, batch: batch, log: log}
}

// Close closes the pool.
func (s *Sink) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables in one transaction.
func (s *Sink) EnsureSchema(ctx context.Context, tables []sink.TableSpec, dropExisting bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if dropExisting {
		for i := len(tables) - 1; i >= 0; i-- {
			stmt := "DROP TABLE IF EXISTS " + ident(tables[i].Name)
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to drop table %s: %w", tables[i].Name, err)
			}
			s.log.Debug().Str("table", tables[i].Name).Msg("Dropped table")
		}
	}

	for _, t := range tables {
		stmt, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}
		s.log.Debug().Str("table", t.Name).Msg("Ensured table")
	}

	return tx.Commit(ctx)
}

// Begin starts a database transaction.
func (s *Sink) Begin(ctx context.Context) (sink.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &txn{tx: tx, batch: s.batch, log: s.log}, nil
}

type txn struct {
	tx    pgx.Tx
	batch sink.BatchConfig
	log   zerolog.Logger
}

func (t *txn) Truncate(ctx context.Context, table string) error {
	if _, err := t.tx.Exec(ctx, "TRUNCATE TABLE "+ident(table)); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table, err)
	}
	return nil
}

func (t *txn) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	progress := sink.NewProgressReporter(t.log, table, int64(len(rows)), t.batch.ProgressInterval)
	for _, batch := range sink.Batches(rows, t.batch.BatchSize) {
		n, err := t.tx.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(batch))
		if err != nil {
			return progress.Rows(), fmt.Errorf("failed to copy into %s: %w", table, err)
		}
		progress.Update(n)
	}
	progress.Done()
	return progress.Rows(), nil
}

func (t *txn) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txn) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// identifier splits a possibly schema-qualified name.
func identifier(name string) pgx.Identifier {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return pgx.Identifier(parts)
}

func ident(name string) string {
	return identifier(name).Sanitize()
}

func buildCreateSQL(t sink.TableSpec) (string, error) {
	defs, err := sink.ColumnDefs(t, ident, columnTypes)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident(t.Name), defs), nil
}
