//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package testutil provides throwaway PostgreSQL databases holding the star
// schema for integration tests.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-retailstar/internal/db"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
	"github.com/pgEdge/pgedge-retailstar/internal/sink/postgres"
)

const (
	// DefaultTestConnString is used when PGEDGE_TEST_CONN is unset.
	DefaultTestConnString = "postgres://postgres@localhost:5432/postgres"

	// TestDBPrefix is the prefix for test databases.
	TestDBPrefix = "retailstar_test_"
)

// SkipIfNoPostgres skips the test unless the server named by
// PGEDGE_TEST_CONN answers a ping, and returns its connection string.
func SkipIfNoPostgres(t *testing.T) string {
	t.Helper()

	connStr := os.Getenv("PGEDGE_TEST_CONN")
	if connStr == "" {
		connStr = DefaultTestConnString
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := db.ConnectWithMaxConns(ctx, connStr, 1, zerolog.Nop())
	if err != nil {
		t.Skipf("PostgreSQL not available, skipping integration test: %v", err)
	}
	pool.Close()
	return connStr
}

// StarDB is a freshly created database with the five star tables in place.
// It is dropped when the test passes and kept for inspection when it fails.
type StarDB struct {
	// ConnString connects to the test database.
	ConnString string

	// Pool is a separate pool for assertions; the sink under test opens its own.
	Pool *pgxpool.Pool

	// Tables names the star tables that were created.
	Tables sink.TableNames

	name string
}

// NewStarDB creates a database on the server at baseConnStr and creates the
// star tables named by tables in it.
func NewStarDB(t *testing.T, baseConnStr string, tables sink.TableNames) *StarDB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := TestDBPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := exec(ctx, baseConnStr, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	sdb := &StarDB{
		ConnString: WithDatabase(baseConnStr, name),
		Tables:     tables,
		name:       name,
	}
	t.Cleanup(func() { sdb.cleanup(t, baseConnStr) })

	pool, err := db.ConnectWithMaxConns(ctx, sdb.ConnString, 2, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sdb.Pool = pool

	// The schema sink borrows the pool, so it is never closed here.
	s := postgres.New(pool, sink.DefaultBatchConfig(), zerolog.Nop())
	if err := s.EnsureSchema(ctx, sink.StarTables(tables), false); err != nil {
		t.Fatalf("Failed to create star tables: %v", err)
	}
	return sdb
}

// Count returns the number of rows in table.
func (s *StarDB) Count(t *testing.T, table string) int64 {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var n int64
	q := "SELECT count(*) FROM " + qualified(table)
	if err := s.Pool.QueryRow(ctx, q).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return n
}

// Counts returns the row count of every star table, keyed by table name.
func (s *StarDB) Counts(t *testing.T) map[string]int64 {
	t.Helper()

	counts := make(map[string]int64, 5)
	for _, spec := range sink.StarTables(s.Tables) {
		counts[spec.Name] = s.Count(t, spec.Name)
	}
	return counts
}

// Truncate empties all five star tables.
func (s *StarDB) Truncate(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	specs := sink.StarTables(s.Tables)
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = qualified(spec.Name)
	}
	if _, err := s.Pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(names, ", ")); err != nil {
		t.Fatalf("Failed to truncate star tables: %v", err)
	}
}

func (s *StarDB) cleanup(t *testing.T, baseConnStr string) {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if t.Failed() {
		t.Logf("Test failed - keeping database %s for diagnostics", s.name)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := exec(ctx, baseConnStr, "DROP DATABASE IF EXISTS "+pgx.Identifier{s.name}.Sanitize()+" WITH (FORCE)"); err != nil {
		t.Logf("Warning: Failed to drop test database %s: %v", s.name, err)
	}
}

// WithDatabase points connStr at database name. URL and keyword/value
// connection strings are both accepted.
func WithDatabase(connStr, name string) string {
	if u, err := url.Parse(connStr); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		u.Path = "/" + name
		return u.String()
	}
	return strings.TrimSpace(connStr) + " dbname=" + name
}

func qualified(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

func exec(ctx context.Context, connStr, sql string) error {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	_, err = conn.Exec(ctx, sql)
	return err
}
