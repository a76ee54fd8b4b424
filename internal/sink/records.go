package sink

import (
	"time"

	"github.com/pgEdge/pgedge-retailstar/internal/model"
)

// DateRecords converts date dimension rows into DateTable column order.
func DateRecords(rows []model.DateRow, stamp time.Time) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Key, r.Date, r.Year, r.Month, r.DayOfMonth, r.DayOfWeek, stamp}
	}
	return out
}

// InvoiceRecords converts invoice dimension rows into InvoiceTable column order.
func InvoiceRecords(rows []model.InvoiceRow, stamp time.Time) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Key, r.InvoiceNo, string(r.Type), stamp}
	}
	return out
}

// CustomerRecords converts customer dimension rows into CustomerTable column order.
func CustomerRecords(rows []model.CustomerRow, stamp time.Time) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Key, r.CustomerID, r.Country, stamp}
	}
	return out
}

// ProductRecords converts product dimension rows into ProductTable column order.
func ProductRecords(rows []model.ProductRow, stamp time.Time) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.Key, r.Code, r.Description, stamp}
	}
	return out
}

// TransactionRecords converts fact rows into TransactionTable column order.
// Prices are written as double precision.
func TransactionRecords(rows []model.FactRow, stamp time.Time) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{
			r.DateKey, r.InvoiceKey, r.ProductKey, r.CustomerKey,
			r.Quantity, r.Price.InexactFloat64(), stamp,
		}
	}
	return out
}
