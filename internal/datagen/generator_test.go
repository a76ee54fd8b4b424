package datagen

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func generate(t *testing.T, seed uint64, rows int) []byte {
	t.Helper()
	var buf bytes.Buffer
	g := NewInvoiceGenerator(NewFakerWithSeed(seed), DefaultOptions(rows), zerolog.Nop())
	n, err := g.Generate(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if n != rows {
		t.Errorf("Expected %d rows, got %d", rows, n)
	}
	return buf.Bytes()
}

func TestGenerateIsReproducible(t *testing.T) {
	a := generate(t, 42, 500)
	b := generate(t, 42, 500)
	if !bytes.Equal(a, b) {
		t.Error("Same seed produced different extracts")
	}

	c := generate(t, 43, 500)
	if bytes.Equal(a, c) {
		t.Error("Different seeds produced identical extracts")
	}
}

func TestGenerateLayout(t *testing.T) {
	records, err := csv.NewReader(bytes.NewReader(generate(t, 7, 300))).ReadAll()
	if err != nil {
		t.Fatalf("Generated extract is not valid CSV: %v", err)
	}
	if len(records) != 301 {
		t.Fatalf("Expected header plus 300 rows, got %d records", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(Header, ",") {
		t.Errorf("Expected header %v, got %v", Header, records[0])
	}

	opts := DefaultOptions(300)
	for i, rec := range records[1:] {
		ts, err := time.Parse(TimestampLayout, rec[4])
		if err != nil {
			t.Fatalf("Row %d: bad timestamp %q: %v", i, rec[4], err)
		}
		if ts.Before(opts.Start) || ts.After(opts.End) {
			t.Errorf("Row %d: timestamp %v outside [%v, %v]", i, ts, opts.Start, opts.End)
		}
		if strings.HasPrefix(rec[0], "C") && !strings.HasPrefix(rec[3], "-") {
			t.Errorf("Row %d: cancellation %s with non-negative quantity %s", i, rec[0], rec[3])
		}
	}
}

func TestInvoiceLinesShareHeaderFields(t *testing.T) {
	records, err := csv.NewReader(bytes.NewReader(generate(t, 9, 400))).ReadAll()
	if err != nil {
		t.Fatalf("Generated extract is not valid CSV: %v", err)
	}

	type head struct{ date, customer, country string }
	seen := make(map[string]head)
	for _, rec := range records[1:] {
		h := head{rec[4], rec[6], rec[7]}
		if prev, ok := seen[rec[0]]; ok && prev != h {
			t.Errorf("Invoice %s has inconsistent header fields: %v vs %v", rec[0], prev, h)
		}
		seen[rec[0]] = h
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewInvoiceGenerator(NewFakerWithSeed(1), DefaultOptions(100), zerolog.Nop())
	if _, err := g.Generate(ctx, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "invoices.csv")
	g := NewInvoiceGenerator(NewFakerWithSeed(3), DefaultOptions(50), zerolog.Nop())

	n, err := g.WriteFile(context.Background(), path)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if n != 50 {
		t.Errorf("Expected 50 rows, got %d", n)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if !bytes.Equal(data, generate(t, 3, 50)) {
		t.Error("WriteFile output differs from Generate output for the same seed")
	}
}

func TestGenerateLogsProgress(t *testing.T) {
	var logs bytes.Buffer
	opts := DefaultOptions(120)
	opts.ProgressInterval = 50

	g := NewInvoiceGenerator(NewFakerWithSeed(1), opts, zerolog.New(&logs))
	if _, err := g.Generate(context.Background(), io.Discard); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if n := strings.Count(logs.String(), "Generating rows"); n != 2 {
		t.Errorf("Expected 2 progress lines, got %d: %s", n, logs.String())
	}
	if !strings.Contains(logs.String(), `"table":"extract"`) {
		t.Errorf("Expected progress to name the extract, got %s", logs.String())
	}
}
