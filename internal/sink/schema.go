package sink

import (
	"fmt"
	"strings"
)

// ColumnType is a logical column type each backend maps to its own SQL type.
type ColumnType int

// Logical column types.
const (
	Integer ColumnType = iota
	BigInt
	Text
	Date
	Timestamp
	Double
)

// Column names shared by the star tables.
const (
	ColDateKey     = "date_key"
	ColDate        = "date"
	ColYear        = "year"
	ColMonth       = "month"
	ColDayOfMonth  = "day_of_month"
	ColDayOfWeek   = "day_of_week"
	ColInvoiceKey  = "invoice_key"
	ColInvoiceNo   = "invoice_no"
	ColType        = "type"
	ColCustomerKey = "customer_key"
	ColCustomerID  = "customer_id"
	ColCountry     = "country"
	ColProductKey  = "product_key"
	ColCode        = "code"
	ColDescription = "description"
	ColQuantity    = "quantity"
	ColPrice       = "price"
	ColInsertStamp = "_insert_txstamp"
)

// ColumnSpec describes one column.
type ColumnSpec struct {
	Name string
	Type ColumnType
}

// TableSpec describes one star table.
type TableSpec struct {
	Name       string
	Columns    []ColumnSpec
	PrimaryKey []string
}

// ColumnNames returns the column names in declaration order.
func (t TableSpec) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// TableNames holds the physical names of the five star tables.
type TableNames struct {
	Date        string
	Invoice     string
	Customer    string
	Product     string
	Transaction string
}

// DefaultTableNames returns the conventional d_/f_ names.
func DefaultTableNames() TableNames {
	return TableNames{
		Date:        "d_date",
		Invoice:     "d_invoice",
		Customer:    "d_customer",
		Product:     "d_product",
		Transaction: "f_transaction",
	}
}

// DateTable describes the date dimension.
func DateTable(name string) TableSpec {
	return TableSpec{
		Name: name,
		Columns: []ColumnSpec{
			{ColDateKey, Integer},
			{ColDate, Date},
			{ColYear, Integer},
			{ColMonth, Text},
			{ColDayOfMonth, Integer},
			{ColDayOfWeek, Text},
			{ColInsertStamp, Timestamp},
		},
		PrimaryKey: []string{ColDateKey},
	}
}

// InvoiceTable describes the invoice dimension.
func InvoiceTable(name string) TableSpec {
	return TableSpec{
		Name: name,
		Columns: []ColumnSpec{
			{ColInvoiceKey, Integer},
			{ColInvoiceNo, Text},
			{ColType, Text},
			{ColInsertStamp, Timestamp},
		},
		PrimaryKey: []string{ColInvoiceKey},
	}
}

// CustomerTable describes the customer dimension.
func CustomerTable(name string) TableSpec {
	return TableSpec{
		Name: name,
		Columns: []ColumnSpec{
			{ColCustomerKey, Integer},
			{ColCustomerID, BigInt},
			{ColCountry, Text},
			{ColInsertStamp, Timestamp},
		},
		PrimaryKey: []string{ColCustomerKey},
	}
}

// ProductTable describes the product dimension.
func ProductTable(name string) TableSpec {
	return TableSpec{
		Name: name,
		Columns: []ColumnSpec{
			{ColProductKey, Integer},
			{ColCode, Text},
			{ColDescription, Text},
			{ColInsertStamp, Timestamp},
		},
		PrimaryKey: []string{ColProductKey},
	}
}

// TransactionTable describes the transaction fact.
func TransactionTable(name string) TableSpec {
	return TableSpec{
		Name: name,
		Columns: []ColumnSpec{
			{ColDateKey, Integer},
			{ColInvoiceKey, Integer},
			{ColProductKey, Integer},
			{ColCustomerKey, Integer},
			{ColQuantity, BigInt},
			{ColPrice, Double},
			{ColInsertStamp, Timestamp},
		},
		PrimaryKey: []string{ColDateKey, ColInvoiceKey, ColProductKey, ColCustomerKey},
	}
}

// StarTables returns the five table specs in load order.
func StarTables(n TableNames) []TableSpec {
	return []TableSpec{
		DateTable(n.Date),
		InvoiceTable(n.Invoice),
		CustomerTable(n.Customer),
		ProductTable(n.Product),
		TransactionTable(n.Transaction),
	}
}

// ColumnDefs renders "name TYPE NOT NULL, ..., PRIMARY KEY (...)" for t using
// the backend's identifier quoting and type names.
func ColumnDefs(t TableSpec, ident func(string) string, types map[ColumnType]string) (string, error) {
	if t.Name == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", t.Name)
	}

	parts := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		typ, ok := types[c.Type]
		if !ok {
			return "", fmt.Errorf("table %s: column %s has unsupported type %d", t.Name, c.Name, c.Type)
		}
		parts = append(parts, ident(c.Name)+" "+typ+" NOT NULL")
	}
	if len(t.PrimaryKey) > 0 {
		pk := make([]string, len(t.PrimaryKey))
		for i, c := range t.PrimaryKey {
			pk[i] = ident(c)
		}
		parts = append(parts, "PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}
	return strings.Join(parts, ", "), nil
}
