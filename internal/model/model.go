//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package model defines the records that flow through the star-schema load:
// raw invoice lines as read from the source, cleaned lines, and the rows of
// the four dimensions and the transaction fact.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Missing is the text a missing source value takes once cast to text.
const Missing = "nan"

// Text is a nullable source value.
type Text struct {
	Value string
	Valid bool
}

// NewText returns a valid Text.
func NewText(s string) Text {
	return Text{Value: s, Valid: true}
}

// String returns the value, or Missing when the value is absent.
func (t Text) String() string {
	if !t.Valid {
		return Missing
	}
	return t.Value
}

// RawInvoiceLine is one row of the source extract with canonical field names
// and uncast textual values.
type RawInvoiceLine struct {
	// Line is the 1-based line in the source, used in error messages.
	Line int

	Invoice     Text
	StockCode   Text
	Description Text
	Quantity    Text
	InvoiceDate Text
	Price       Text
	CustomerID  Text
	Country     Text
}

// Class is the sign classification of a quantity or price.
type Class string

// Sign classes.
const (
	Positive Class = "positive"
	Negative Class = "negative"
	Zero     Class = "zero"
)

// ClassOf classifies a sign as returned by decimal.Decimal.Sign or cmp.Compare.
func ClassOf(sign int) Class {
	switch {
	case sign > 0:
		return Positive
	case sign < 0:
		return Negative
	default:
		return Zero
	}
}

// InvoiceType labels what kind of business event an invoice line records.
type InvoiceType string

// Invoice types.
const (
	Purchase   InvoiceType = "Purchase"
	FreeStock  InvoiceType = "Free Stock"
	Adjustment InvoiceType = "Adjustment"
	Sale       InvoiceType = "Sale"
	Donation   InvoiceType = "Donation"
	Unknown    InvoiceType = "Unknown"
)

// Line is a cleaned and classified invoice line.
type Line struct {
	Source int

	InvoiceNo   string
	Code        string
	Description string
	Quantity    int64
	InvoiceDate time.Time
	Price       decimal.Decimal
	CustomerID  int64
	Country     string

	QuantityClass Class
	PriceClass    Class
	Type          InvoiceType
}

// DateRow is a row of the date dimension.
type DateRow struct {
	Key        int
	Date       time.Time
	Year       int
	Month      string
	DayOfMonth int
	DayOfWeek  string
}

// InvoiceRow is a row of the invoice dimension.
type InvoiceRow struct {
	Key       int
	InvoiceNo string
	Type      InvoiceType
}

// CustomerRow is a row of the customer dimension.
type CustomerRow struct {
	Key        int
	CustomerID int64
	Country    string
}

// ProductRow is a row of the product dimension.
type ProductRow struct {
	Key         int
	Code        string
	Description string
}

// FactRow is a row of the transaction fact at
// (date, invoice, product, customer) grain.
type FactRow struct {
	DateKey     int
	InvoiceKey  int
	ProductKey  int
	CustomerKey int
	Quantity    int64
	Price       decimal.Decimal
}
