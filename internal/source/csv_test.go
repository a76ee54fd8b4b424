package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
)

const extract = `Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country
489434,85048,15CM CHRISTMAS GLASS BALL 20 LIGHTS,12,2009-12-01 07:45:00,6.95,13085.0,United Kingdom
489436,21755,"LOVE BUILDING BLOCK WORD, PINK",18,2009-12-01 09:06:00,5.45,,EIRE
`

func newReader(t *testing.T, opts Options) *Reader {
	t.Helper()
	r, err := NewReader(opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	return r
}

func TestReadMapsHeader(t *testing.T) {
	lines, err := newReader(t, Options{}).Read(context.Background(), strings.NewReader(extract))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}

	first := lines[0]
	if first.Line != 2 {
		t.Errorf("Expected source line 2, got %d", first.Line)
	}
	if first.Invoice.Value != "489434" || first.StockCode.Value != "85048" {
		t.Errorf("Expected invoice 489434 / code 85048, got %s / %s", first.Invoice.Value, first.StockCode.Value)
	}
	if first.CustomerID.Value != "13085.0" {
		t.Errorf("Expected customer '13085.0', got '%s'", first.CustomerID.Value)
	}

	second := lines[1]
	if second.Description.Value != "LOVE BUILDING BLOCK WORD, PINK" {
		t.Errorf("Expected quoted description, got '%s'", second.Description.Value)
	}
	if second.CustomerID.Valid {
		t.Errorf("Expected missing customer id, got '%s'", second.CustomerID.Value)
	}
	if second.Country.Value != "EIRE" {
		t.Errorf("Expected country EIRE, got '%s'", second.Country.Value)
	}
}

func TestReadReorderedAndLegacyHeaders(t *testing.T) {
	in := "\uFEFFCountry,CustomerID,UnitPrice,InvoiceDate,Quantity,Description,StockCode,InvoiceNo,Extra\n" +
		"France,12345,1.25,12/1/2010 8:26,6,WHITE HANGING HEART,85123A,536365,x\n"

	lines, err := newReader(t, Options{}).Read(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	l := lines[0]
	if l.Country.Value != "France" || l.Invoice.Value != "536365" || l.Price.Value != "1.25" {
		t.Errorf("Expected France/536365/1.25, got %s/%s/%s", l.Country.Value, l.Invoice.Value, l.Price.Value)
	}
}

func TestReadMissingValues(t *testing.T) {
	in := "Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country\n" +
		"1,A,NULL,1,2010-01-01,1,NA,\n"

	lines, err := newReader(t, Options{}).Read(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	l := lines[0]
	for name, v := range map[string]bool{
		"Description": l.Description.Valid,
		"Customer ID": l.CustomerID.Valid,
		"Country":     l.Country.Valid,
	} {
		if v {
			t.Errorf("Expected %s to be missing", name)
		}
	}
	if l.Country.String() != "nan" {
		t.Errorf("Expected missing country to render 'nan', got '%s'", l.Country.String())
	}
}

func TestReadMissingColumn(t *testing.T) {
	in := "Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Country\n"
	_, err := newReader(t, Options{}).Read(context.Background(), strings.NewReader(in))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("Expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "Customer ID") {
		t.Errorf("Expected error to name Customer ID, got %v", err)
	}
}

func TestReadEmptySource(t *testing.T) {
	if _, err := newReader(t, Options{}).Read(context.Background(), strings.NewReader("")); err == nil {
		t.Error("Expected error for empty source")
	}
}

func TestReadLatin1(t *testing.T) {
	utf := "Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country\n" +
		"1,A,CAFÉ AU LAIT BOWL,1,2010-01-01,1,1,France\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(utf)
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}

	lines, err := newReader(t, Options{Encoding: "latin1"}).Read(context.Background(), strings.NewReader(encoded))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := lines[0].Description.Value; got != "CAFÉ AU LAIT BOWL" {
		t.Errorf("Expected decoded description, got %q", got)
	}
}

func TestReadDelimiter(t *testing.T) {
	in := strings.ReplaceAll(extract, ",", ";")

	lines, err := newReader(t, Options{Delimiter: ';'}).Read(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("Expected 2 lines, got %d", len(lines))
	}
}

func TestEncoding(t *testing.T) {
	tests := []struct {
		name    string
		wantNil bool
		wantErr bool
	}{
		{"", true, false},
		{"UTF-8", true, false},
		{"latin1", false, false},
		{"windows-1252", false, false},
		{"klingon", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encoding(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && (enc == nil) != tt.wantNil {
				t.Errorf("Expected nil encoding %v, got %v", tt.wantNil, enc)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoices.csv")
	if err := os.WriteFile(path, []byte(extract), 0o600); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	lines, err := newReader(t, Options{}).ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("Expected 2 lines, got %d", len(lines))
	}

	if _, err := newReader(t, Options{}).ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("Expected error for missing file")
	}
}
