package mssql

import (
	"strings"
	"testing"

	"github.com/pgEdge/pgedge-retailstar/internal/sink"
)

func TestBuildCreateSQL(t *testing.T) {
	got, err := buildCreateSQL(sink.ProductTable("dbo.d_product"))
	if err != nil {
		t.Fatalf("buildCreateSQL failed: %v", err)
	}

	want := "IF OBJECT_ID(N'dbo.d_product', N'U') IS NULL BEGIN CREATE TABLE [dbo].[d_product] (" +
		"[product_key] INT NOT NULL, " +
		"[code] NVARCHAR(4000) NOT NULL, " +
		"[description] NVARCHAR(4000) NOT NULL, " +
		"[_insert_txstamp] DATETIME2 NOT NULL, " +
		"PRIMARY KEY ([product_key])); END;"
	if got != want {
		t.Errorf("Expected\n%s\ngot\n%s", want, got)
	}
}

func TestBuildCreateSQLFactPrice(t *testing.T) {
	got, err := buildCreateSQL(sink.TransactionTable("f_transaction"))
	if err != nil {
		t.Fatalf("buildCreateSQL failed: %v", err)
	}
	if !strings.Contains(got, "[price] FLOAT NOT NULL") {
		t.Errorf("Expected FLOAT price column, got %s", got)
	}
}

func TestBuildDropSQL(t *testing.T) {
	got := buildDropSQL("d_date")
	want := "IF OBJECT_ID(N'd_date', N'U') IS NOT NULL DROP TABLE [d_date];"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestTableIdentEscapes(t *testing.T) {
	if got := tableIdent("a]b"); got != "[a]]b]" {
		t.Errorf("Expected [a]]b], got %s", got)
	}
}
