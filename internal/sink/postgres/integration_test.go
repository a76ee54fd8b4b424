//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

//go:build integration
// +build integration

// Integration tests for the PostgreSQL sink.
// Run with: go test -tags=integration ./internal/sink/postgres/...
// Requires PostgreSQL to be available.
// Set PGEDGE_TEST_CONN environment variable to override connection string.

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-retailstar/internal/fact"
	"github.com/pgEdge/pgedge-retailstar/internal/model"
	"github.com/pgEdge/pgedge-retailstar/internal/pipeline"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
	"github.com/pgEdge/pgedge-retailstar/internal/sink/postgres"
	"github.com/pgEdge/pgedge-retailstar/internal/testutil"
)

func line(invoice, code, qty, date, price, customer, country string) model.RawInvoiceLine {
	return model.RawInvoiceLine{
		Invoice:     model.NewText(invoice),
		StockCode:   model.NewText(code),
		Description: model.NewText("ITEM " + code),
		Quantity:    model.NewText(qty),
		InvoiceDate: model.NewText(date),
		Price:       model.NewText(price),
		CustomerID:  model.NewText(customer),
		Country:     model.NewText(country),
	}
}

func TestPostgresLoadIntegration(t *testing.T) {
	baseConnStr := testutil.SkipIfNoPostgres(t)

	names := sink.DefaultTableNames()
	sdb := testutil.NewStarDB(t, baseConnStr, names)

	ctx := context.Background()
	s, err := sink.Open(ctx, sink.Config{Kind: postgres.Kind, DSN: sdb.ConnString})
	if err != nil {
		t.Fatalf("Failed to open sink: %v", err)
	}
	defer s.Close()

	t.Run("EnsureSchemaIsIdempotent", func(t *testing.T) {
		if err := s.EnsureSchema(ctx, sink.StarTables(names), false); err != nil {
			t.Fatalf("EnsureSchema failed: %v", err)
		}
		for table, n := range sdb.Counts(t) {
			if n != 0 {
				t.Errorf("Expected %s to be empty, got %d rows", table, n)
			}
		}
	})

	p := pipeline.New(s, pipeline.Options{
		Tables:               names,
		ConcurrentDimensions: true,
		Logger:               zerolog.Nop(),
		Clock:                func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	})

	good := []model.RawInvoiceLine{
		line("536365", "85123A", "6", "2010-12-01 08:26:00", "2.55", "17850", "United Kingdom"),
		line("536370", "22728", "3", "2010-12-01 08:45:00", "3.75", "12583", "France"),
		line("536370", "22728", "4", "2010-12-01 11:45:00", "3.75", "12583", "France"),
	}

	t.Run("Load", func(t *testing.T) {
		if _, err := p.Run(ctx, good); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		want := map[string]int64{
			names.Date:        730,
			names.Invoice:     2,
			names.Customer:    2,
			names.Product:     2,
			names.Transaction: 2,
		}
		for table, n := range sdb.Counts(t) {
			if n != want[table] {
				t.Errorf("Expected %d rows in %s, got %d", want[table], table, n)
			}
		}

		var qty int64
		var price float64
		err := sdb.Pool.QueryRow(ctx, `SELECT quantity, price FROM f_transaction WHERE quantity = 7`).Scan(&qty, &price)
		if err != nil {
			t.Fatalf("Failed to read collapsed fact: %v", err)
		}
		if price != 7.5 {
			t.Errorf("Expected price 7.5, got %v", price)
		}
	})

	t.Run("RollbackOnIntegrityError", func(t *testing.T) {
		bad := append(append([]model.RawInvoiceLine{}, good...), line("581587", "22613", "12", "2011-12-09 12:50:00", "0.85", "12680", "France"))
		_, err := p.Run(ctx, bad)
		if !errors.Is(err, fact.ErrIntegrity) {
			t.Fatalf("Expected integrity error, got %v", err)
		}
		if n := sdb.Count(t, names.Transaction); n != 2 {
			t.Errorf("Expected prior 2 fact rows to survive, got %d", n)
		}
	})

	t.Run("ReloadReplacesContent", func(t *testing.T) {
		if _, err := p.Run(ctx, good[:1]); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if n := sdb.Count(t, names.Customer); n != 1 {
			t.Errorf("Expected 1 customer after reload, got %d", n)
		}
	})

	t.Run("LoadIntoEmptiedTables", func(t *testing.T) {
		sdb.Truncate(t)
		if n := sdb.Count(t, names.Date); n != 0 {
			t.Fatalf("Expected empty date table after truncate, got %d", n)
		}
		if _, err := p.Run(ctx, good); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if n := sdb.Count(t, names.Transaction); n != 2 {
			t.Errorf("Expected 2 fact rows, got %d", n)
		}
	})
}
