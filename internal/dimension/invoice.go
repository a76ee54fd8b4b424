package dimension

import "github.com/pgEdge/pgedge-retailstar/internal/model"

// InvoiceKey is the natural key of the invoice dimension.
type InvoiceKey struct {
	InvoiceNo string
	Type      model.InvoiceType
}

// InvoiceBuilder derives one row per distinct (invoice number, type). An
// invoice mixing sales and returns yields one row per type.
type InvoiceBuilder struct {
	table string
}

// NewInvoiceBuilder creates an invoice dimension builder for table.
func NewInvoiceBuilder(table string) *InvoiceBuilder {
	return &InvoiceBuilder{table: table}
}

// Table returns the target table name.
func (b *InvoiceBuilder) Table() string {
	return b.table
}

// Build keeps the first occurrence of each pair; keys follow that order.
func (b *InvoiceBuilder) Build(lines []model.Line) []model.InvoiceRow {
	keys := newKeyer[InvoiceKey](len(lines) / 4)
	var rows []model.InvoiceRow
	for _, l := range lines {
		nk := InvoiceKey{InvoiceNo: l.InvoiceNo, Type: l.Type}
		if id, first := keys.key(nk); first {
			rows = append(rows, model.InvoiceRow{Key: id, InvoiceNo: nk.InvoiceNo, Type: nk.Type})
		}
	}
	return rows
}
