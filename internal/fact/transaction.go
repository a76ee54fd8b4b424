//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package fact builds the transaction fact table by resolving every cleaned
// invoice line against the four dimensions.
package fact

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-retailstar/internal/dimension"
	"github.com/pgEdge/pgedge-retailstar/internal/model"
)

// Surrogate key columns, in the order they are checked and reported.
const (
	DateKey     = "date_key"
	InvoiceKey  = "invoice_key"
	ProductKey  = "product_key"
	CustomerKey = "customer_key"
)

var keyColumns = []string{DateKey, InvoiceKey, ProductKey, CustomerKey}

// ErrIntegrity is matched by every referential-integrity failure.
var ErrIntegrity = errors.New("referential integrity violated")

// MissingKey counts the lines that did not resolve one surrogate key.
type MissingKey struct {
	Column string
	Lines  int
}

// IntegrityError reports lines that some dimension did not cover.
type IntegrityError struct {
	Missing []MissingKey
}

func (e *IntegrityError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		parts[i] = fmt.Sprintf("%s (%d lines)", m.Column, m.Lines)
	}
	return "missing values found in the following columns: " + strings.Join(parts, ", ")
}

// Columns returns the names of the key columns with missing values.
func (e *IntegrityError) Columns() []string {
	cols := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		cols[i] = m.Column
	}
	return cols
}

// Is matches ErrIntegrity.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// Dimensions holds the built dimension rows the fact is resolved against.
type Dimensions struct {
	Dates     []model.DateRow
	Invoices  []model.InvoiceRow
	Customers []model.CustomerRow
	Products  []model.ProductRow
}

// Builder derives the transaction fact.
type Builder struct {
	table string
	log   zerolog.Logger
}

// NewBuilder creates a fact builder for table.
func NewBuilder(table string, log zerolog.Logger) *Builder {
	return &Builder{table: table, log: log}
}

// Table returns the target table name.
func (b *Builder) Table() string {
	return b.table
}

// grain is the composite key of a fact row.
type grain struct {
	dateKey, invoiceKey, productKey, customerKey int
}

// resolved is a line after all four joins. A zero key means the join missed.
type resolved struct {
	grain
	quantity int64
	price    decimal.Decimal
}

// Build joins lines to dims, verifies every key resolved and aggregates to
// fact grain by summing quantity and price. Rows are ordered by
// (date_key, customer_key, invoice_key, product_key).
func (b *Builder) Build(lines []model.Line, dims Dimensions) ([]model.FactRow, error) {
	joined := join(lines, dims)

	if err := checkIntegrity(joined); err != nil {
		b.log.Error().Err(err).Msg("Fact lines reference values missing from dimensions")
		return nil, err
	}

	rows := aggregate(joined)
	b.log.Debug().
		Int("lines", len(lines)).
		Int("rows", len(rows)).
		Msg("Aggregated transaction fact")
	return rows, nil
}

func join(lines []model.Line, dims Dimensions) []resolved {
	dates := make(map[int]int, len(dims.Dates))
	for _, d := range dims.Dates {
		dates[dimension.DateKey(d.Date)] = d.Key
	}
	invoices := make(map[dimension.InvoiceKey]int, len(dims.Invoices))
	for _, r := range dims.Invoices {
		invoices[dimension.InvoiceKey{InvoiceNo: r.InvoiceNo, Type: r.Type}] = r.Key
	}
	customers := make(map[dimension.CustomerKey]int, len(dims.Customers))
	for _, r := range dims.Customers {
		customers[dimension.CustomerKey{CustomerID: r.CustomerID, Country: r.Country}] = r.Key
	}
	products := make(map[string]int, len(dims.Products))
	for _, r := range dims.Products {
		products[r.Code] = r.Key
	}

	out := make([]resolved, len(lines))
	for i, l := range lines {
		out[i] = resolved{
			grain: grain{
				dateKey:     dates[dimension.DateKey(l.InvoiceDate)],
				invoiceKey:  invoices[dimension.InvoiceKey{InvoiceNo: l.InvoiceNo, Type: l.Type}],
				productKey:  products[l.Code],
				customerKey: customers[dimension.CustomerKey{CustomerID: l.CustomerID, Country: l.Country}],
			},
			quantity: l.Quantity,
			price:    l.Price,
		}
	}
	return out
}

func checkIntegrity(joined []resolved) error {
	var missing [4]int
	for _, r := range joined {
		for i, k := range [4]int{r.dateKey, r.invoiceKey, r.productKey, r.customerKey} {
			if k == 0 {
				missing[i]++
			}
		}
	}

	var ie IntegrityError
	for i, n := range missing {
		if n > 0 {
			ie.Missing = append(ie.Missing, MissingKey{Column: keyColumns[i], Lines: n})
		}
	}
	if len(ie.Missing) > 0 {
		return &ie
	}
	return nil
}

func aggregate(joined []resolved) []model.FactRow {
	index := make(map[grain]int, len(joined))
	var rows []model.FactRow
	for _, r := range joined {
		if i, ok := index[r.grain]; ok {
			rows[i].Quantity += r.quantity
			rows[i].Price = rows[i].Price.Add(r.price)
			continue
		}
		index[r.grain] = len(rows)
		rows = append(rows, model.FactRow{
			DateKey:     r.dateKey,
			InvoiceKey:  r.invoiceKey,
			ProductKey:  r.productKey,
			CustomerKey: r.customerKey,
			Quantity:    r.quantity,
			Price:       r.price,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.DateKey != b.DateKey {
			return a.DateKey < b.DateKey
		}
		if a.CustomerKey != b.CustomerKey {
			return a.CustomerKey < b.CustomerKey
		}
		if a.InvoiceKey != b.InvoiceKey {
			return a.InvoiceKey < b.InvoiceKey
		}
		return a.ProductKey < b.ProductKey
	})
	return rows
}
