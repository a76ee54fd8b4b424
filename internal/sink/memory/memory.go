//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package memory implements the star-schema sink in process memory. It backs
// dry runs and tests: committed state only changes on Commit, and failures
// can be injected per table and operation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pgEdge/pgedge-retailstar/internal/sink"
)

// Kind is the registry name of this backend.
const Kind = "memory"

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected sink failure")

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("transaction already committed or rolled back")

// Op names a transaction operation for failure injection.
type Op string

// Injectable operations.
const (
	OpTruncate   Op = "truncate"
	OpBulkInsert Op = "bulk_insert"
	OpCommit     Op = "commit"
)

func init() {
	sink.Register(Kind, func(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
		return New(), nil
	})
}

// Table is the stored content of one table.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Sink keeps tables in memory.
type Sink struct {
	mu        sync.Mutex
	schema    map[string]sink.TableSpec
	committed map[string]Table
	failures  map[failure]error
	commits   int
	rollbacks int
}

type failure struct {
	op    Op
	table string
}

// New returns an empty memory sink.
func New() *Sink {
	return &Sink{
		schema:    make(map[string]sink.TableSpec),
		committed: make(map[string]Table),
		failures:  make(map[failure]error),
	}
}

// FailOn makes op fail on table with ErrInjected. For OpCommit the table is
// ignored.
func (s *Sink) FailOn(op Op, table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op == OpCommit {
		table = ""
	}
	s.failures[failure{op, table}] = fmt.Errorf("%s %s: %w", op, table, ErrInjected)
}

// EnsureSchema records the table specs. Existing content is kept unless
// dropExisting is set.
func (s *Sink) EnsureSchema(ctx context.Context, tables []sink.TableSpec, dropExisting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tables {
		if t.Name == "" {
			return fmt.Errorf("table name is empty")
		}
		s.schema[t.Name] = t
		if _, ok := s.committed[t.Name]; !ok || dropExisting {
			s.committed[t.Name] = Table{Columns: t.ColumnNames()}
		}
	}
	return nil
}

// Begin snapshots the committed state into a new transaction.
func (s *Sink) Begin(ctx context.Context) (sink.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := make(map[string]Table, len(s.committed))
	for name, t := range s.committed {
		work[name] = t
	}
	return &txn{sink: s, work: work}, nil
}

// Close is a no-op.
func (s *Sink) Close() {}

// Table returns the committed content of name.
func (s *Sink) Table(name string) (Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.committed[name]
	return t, ok
}

// Commits returns how many transactions were committed.
func (s *Sink) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Rollbacks returns how many transactions were rolled back.
func (s *Sink) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

func (s *Sink) injected(op Op, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[failure{op, table}]
}

type txn struct {
	sink *Sink
	work map[string]Table
	done bool
}

func (t *txn) Truncate(ctx context.Context, table string) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.sink.injected(OpTruncate, table); err != nil {
		return err
	}
	cur, ok := t.work[table]
	if !ok {
		return fmt.Errorf("table %s does not exist", table)
	}
	t.work[table] = Table{Columns: cur.Columns}
	return nil
}

func (t *txn) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if t.done {
		return 0, ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := t.sink.injected(OpBulkInsert, table); err != nil {
		return 0, err
	}
	cur, ok := t.work[table]
	if !ok {
		return 0, fmt.Errorf("table %s does not exist", table)
	}
	if !slices.Equal(cur.Columns, columns) {
		return 0, fmt.Errorf("table %s has columns %v, insert names %v", table, cur.Columns, columns)
	}

	next := Table{Columns: cur.Columns, Rows: slices.Clone(cur.Rows)}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("insert into %s: row %d has %d values, expected %d", table, i, len(row), len(columns))
		}
		next.Rows = append(next.Rows, slices.Clone(row))
	}
	t.work[table] = next
	return int64(len(rows)), nil
}

func (t *txn) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.sink.injected(OpCommit, ""); err != nil {
		return err
	}

	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.committed = t.work
	t.sink.commits++
	t.done = true
	return nil
}

func (t *txn) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.rollbacks++
	return nil
}
