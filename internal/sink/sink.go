//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package sink defines the relational target of a star-schema load and a
// registry of database backends that implement it.
package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Sink is a database that can hold the star schema.
type Sink interface {
	// EnsureSchema creates the tables if they do not exist. With dropExisting
	// the tables are dropped first.
	EnsureSchema(ctx context.Context, tables []TableSpec, dropExisting bool) error

	// Begin opens the unit of work that all table writes of a load share.
	Begin(ctx context.Context) (Tx, error)

	// Close releases connections held by the sink.
	Close()
}

// Tx is one all-or-nothing unit of work against a sink.
type Tx interface {
	// Truncate removes every row from table.
	Truncate(ctx context.Context, table string) error

	// BulkInsert appends rows to table. Each row holds one value per column,
	// in column order. It returns the number of rows written.
	BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Commit makes every write of the unit of work visible.
	Commit(ctx context.Context) error

	// Rollback discards every write of the unit of work. Calling it after
	// Commit is a no-op.
	Rollback(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name (postgres, mssql, sqlite, memory).
	Kind string

	// DSN is the backend connection string.
	DSN string

	// Batch controls insert batching and progress logging.
	Batch BatchConfig
}

// Factory opens a sink for a registered backend.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a backend under kind. It panics when kind is empty, f is nil,
// or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("sink: Register called with empty kind")
	}
	if f == nil {
		panic("sink: Register called with nil factory")
	}
	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("sink: factory already registered for kind=%q", kind))
	}
	registry[kind] = f
}

// Open creates a sink using the factory registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("sink: missing kind")
	}

	mu.RLock()
	f := registry[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported sink kind: %s", cfg.Kind)
	}
	if cfg.Batch.BatchSize <= 0 {
		cfg.Batch = DefaultBatchConfig()
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend names, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
