//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package transform cleans and classifies raw invoice lines before any
// dimension or fact is built.
package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-retailstar/internal/model"
)

// CustomerSentinel replaces a missing or non-numeric customer id.
const CustomerSentinel int64 = -1

// testMarker excludes internal test products from the load.
const testMarker = "TEST"

// Column names used in cast errors.
const (
	ColQuantity    = "quantity"
	ColPrice       = "price"
	ColInvoiceDate = "invoice_date"
)

// dateLayouts are tried in order when parsing an invoice date.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006",
}

// Stats summarizes one normalization pass.
type Stats struct {
	Read             int
	FilteredTest     int
	SentinelCustomer int
	Kept             int
}

// Normalizer casts raw lines, recovers customer ids, drops test products and
// derives the quantity and price sign classes.
type Normalizer struct {
	log zerolog.Logger
}

// NewNormalizer creates a normalizer that logs through log.
func NewNormalizer(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize returns the cast lines in source order. A quantity, price or date
// that cannot be cast aborts the pass with a *CastError.
func (n *Normalizer) Normalize(raw []model.RawInvoiceLine) ([]model.Line, Stats, error) {
	stats := Stats{Read: len(raw)}
	out := make([]model.Line, 0, len(raw))

	for i := range raw {
		r := &raw[i]

		line, err := castLine(r)
		if err != nil {
			return nil, stats, err
		}

		id, ok := parseCustomerID(r.CustomerID)
		if !ok {
			stats.SentinelCustomer++
		}
		line.CustomerID = id

		// A missing code is kept: only a present code can carry the marker.
		if r.StockCode.Valid && strings.Contains(line.Code, testMarker) {
			stats.FilteredTest++
			continue
		}

		line.QuantityClass = model.ClassOf(sign64(line.Quantity))
		line.PriceClass = model.ClassOf(line.Price.Sign())
		out = append(out, line)
	}

	stats.Kept = len(out)
	n.log.Debug().
		Int("read", stats.Read).
		Int("filtered_test", stats.FilteredTest).
		Int("sentinel_customer", stats.SentinelCustomer).
		Int("kept", stats.Kept).
		Msg("Normalized invoice lines")

	return out, stats, nil
}

func castLine(r *model.RawInvoiceLine) (model.Line, error) {
	qty, err := parseQuantity(r.Quantity.String())
	if err != nil {
		return model.Line{}, &CastError{Line: r.Line, Column: ColQuantity, Value: r.Quantity.Value, Err: err}
	}

	price, err := decimal.NewFromString(strings.TrimSpace(r.Price.String()))
	if err != nil {
		return model.Line{}, &CastError{Line: r.Line, Column: ColPrice, Value: r.Price.Value, Err: err}
	}

	date, err := ParseInvoiceDate(r.InvoiceDate.String())
	if err != nil {
		return model.Line{}, &CastError{Line: r.Line, Column: ColInvoiceDate, Value: r.InvoiceDate.Value, Err: err}
	}

	return model.Line{
		Source:      r.Line,
		InvoiceNo:   r.Invoice.String(),
		Code:        r.StockCode.String(),
		Description: r.Description.String(),
		Quantity:    qty,
		InvoiceDate: date,
		Price:       price,
		Country:     r.Country.String(),
	}, nil
}

// parseQuantity accepts integers and integral decimals such as "6.0".
func parseQuantity(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if q, err := strconv.ParseInt(s, 10, 64); err == nil {
		return q, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("not an integer")
	}
	return d.IntPart(), nil
}

// ParseInvoiceDate parses s with any supported layout and discards the time
// of day. The result is midnight UTC.
func ParseInvoiceDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return TruncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

// TruncateDay returns midnight UTC of t's calendar date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseCustomerID never fails: anything that is not a finite number inside
// the int64 range becomes the sentinel and ok is false.
func parseCustomerID(t model.Text) (id int64, ok bool) {
	if !t.Valid {
		return CustomerSentinel, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return CustomerSentinel, false
	}
	// float64 to int64 conversion is undefined outside [-2^63, 2^63).
	if f >= 1<<63 || f < -(1<<63) {
		return CustomerSentinel, false
	}
	return int64(f), true
}

func sign64(v int64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
