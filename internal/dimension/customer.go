package dimension

import "github.com/pgEdge/pgedge-retailstar/internal/model"

// CustomerKey is the natural key of the customer dimension.
type CustomerKey struct {
	CustomerID int64
	Country    string
}

// CustomerBuilder derives one row per distinct (customer id, country).
type CustomerBuilder struct {
	table string
}

// NewCustomerBuilder creates a customer dimension builder for table.
func NewCustomerBuilder(table string) *CustomerBuilder {
	return &CustomerBuilder{table: table}
}

// Table returns the target table name.
func (b *CustomerBuilder) Table() string {
	return b.table
}

// Build keeps the first occurrence of each pair; keys follow that order.
func (b *CustomerBuilder) Build(lines []model.Line) []model.CustomerRow {
	keys := newKeyer[CustomerKey](len(lines) / 8)
	var rows []model.CustomerRow
	for _, l := range lines {
		nk := CustomerKey{CustomerID: l.CustomerID, Country: l.Country}
		if id, first := keys.key(nk); first {
			rows = append(rows, model.CustomerRow{Key: id, CustomerID: nk.CustomerID, Country: nk.Country})
		}
	}
	return rows
}
