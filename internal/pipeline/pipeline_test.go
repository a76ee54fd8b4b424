package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-retailstar/internal/fact"
	"github.com/pgEdge/pgedge-retailstar/internal/model"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
	"github.com/pgEdge/pgedge-retailstar/internal/sink/memory"
	"github.com/pgEdge/pgedge-retailstar/internal/transform"
)

var loadTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func raw(invoice, code, desc, qty, date, price, customer, country string) model.RawInvoiceLine {
	text := func(s string) model.Text {
		if s == "" {
			return model.Text{}
		}
		return model.NewText(s)
	}
	return model.RawInvoiceLine{
		Invoice:     text(invoice),
		StockCode:   text(code),
		Description: text(desc),
		Quantity:    text(qty),
		InvoiceDate: text(date),
		Price:       text(price),
		CustomerID:  text(customer),
		Country:     text(country),
	}
}

func extract() []model.RawInvoiceLine {
	return []model.RawInvoiceLine{
		raw("536365", "85123A", "WHITE HANGING HEART T-LIGHT HOLDER", "6", "2010-12-01 08:26:00", "2.55", "17850", "United Kingdom"),
		raw("C536379", "D", "Discount", "-2", "2010-12-01 09:41:00", "1.50", "14527", "United Kingdom"),
		raw("536381", "22139", "RETROSPOT TEA SET CERAMIC 11 PC", "5", "2010-12-01 09:41:00", "0", "", "Unspecified"),
		raw("536382", "TESTING", "test product", "1", "2010-12-01 10:00:00", "1.00", "17850", "United Kingdom"),
		raw("536390", "22941", "CHRISTMAS LIGHTS 10 REINDEER", "3", "2010-12-01 10:19:00", "8.50", "17511", "EIRE"),
		raw("536370", "22728", "ALARM CLOCK BAKELIKE PINK", "3", "2010-12-01 08:45:00", "3.75", "12583", "France"),
		raw("536370", "22728", "ALARM CLOCK BAKELIKE PINK", "4", "2010-12-01 11:45:00", "3.75", "12583", "France"),
	}
}

func newSink(t *testing.T) *memory.Sink {
	t.Helper()
	s := memory.New()
	if err := s.EnsureSchema(context.Background(), sink.StarTables(sink.DefaultTableNames()), false); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return s
}

func newPipeline(s sink.Sink, concurrent bool) *Pipeline {
	return New(s, Options{
		Tables:               sink.DefaultTableNames(),
		ConcurrentDimensions: concurrent,
		Logger:               zerolog.Nop(),
		Clock:                func() time.Time { return loadTime },
	})
}

func committed(t *testing.T, s *memory.Sink, table string) [][]any {
	t.Helper()
	tbl, ok := s.Table(table)
	if !ok {
		t.Fatalf("Table %s not found", table)
	}
	return tbl.Rows
}

func TestRunLoadsAllTables(t *testing.T) {
	s := newSink(t)
	res, err := newPipeline(s, true).Run(context.Background(), extract())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := map[string]int64{
		"d_date":        730,
		"d_invoice":     5,
		"d_customer":    5,
		"d_product":     5,
		"f_transaction": 5,
	}
	for table, n := range want {
		if got := res.Rows(table); got != n {
			t.Errorf("Expected %d rows in %s, got %d", n, table, got)
		}
		if got := len(committed(t, s, table)); int64(got) != n {
			t.Errorf("Expected %d committed rows in %s, got %d", n, table, got)
		}
	}

	if res.Stats.FilteredTest != 1 {
		t.Errorf("Expected 1 filtered test line, got %d", res.Stats.FilteredTest)
	}
	if res.LoadedAt != loadTime {
		t.Errorf("Expected load time %v, got %v", loadTime, res.LoadedAt)
	}
	if s.Commits() != 1 {
		t.Errorf("Expected 1 commit, got %d", s.Commits())
	}
}

func TestRunThroughRegisteredMemorySink(t *testing.T) {
	ctx := context.Background()
	s, err := sink.Open(ctx, sink.Config{Kind: memory.Kind})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	// A registry-opened memory sink holds no tables until the schema exists.
	_, err = newPipeline(s, true).Run(ctx, extract())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "sink d_date" {
		t.Fatalf("Expected failure at sink d_date without schema, got %v", err)
	}

	if err := s.EnsureSchema(ctx, sink.StarTables(sink.DefaultTableNames()), false); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	res, err := newPipeline(s, true).Run(ctx, extract())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Rows("f_transaction") != 5 {
		t.Errorf("Expected 5 fact rows, got %d", res.Rows("f_transaction"))
	}
}

func TestRunScenarios(t *testing.T) {
	s := newSink(t)
	if _, err := newPipeline(s, false).Run(context.Background(), extract()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	types := make(map[string]string)
	for _, r := range committed(t, s, "d_invoice") {
		types[r[1].(string)] = r[2].(string)
	}
	for invoice, want := range map[string]string{
		"536365":  "Sale",
		"C536379": "Purchase",
		"536381":  "Donation",
	} {
		if types[invoice] != want {
			t.Errorf("Invoice %s: expected type %s, got %s", invoice, want, types[invoice])
		}
	}
	if _, ok := types["536382"]; ok {
		t.Error("Expected invoice of the TESTING line to be absent")
	}

	for _, r := range committed(t, s, "d_product") {
		if r[1] == "TESTING" {
			t.Error("Expected TESTING to be absent from the product dimension")
		}
	}

	countries := make(map[int64]string)
	for _, r := range committed(t, s, "d_customer") {
		countries[r[1].(int64)] = r[2].(string)
	}
	if countries[17511] != "Ireland" {
		t.Errorf("Expected EIRE customer to be Ireland, got %s", countries[17511])
	}
	if countries[-1] != "Unknown" {
		t.Errorf("Expected sentinel customer in Unknown, got %q", countries[-1])
	}

	var collapsed int
	for _, r := range committed(t, s, "f_transaction") {
		if r[4].(int64) == 7 {
			collapsed++
			if r[5].(float64) != 7.5 {
				t.Errorf("Expected summed price 7.5, got %v", r[5])
			}
		}
	}
	if collapsed != 1 {
		t.Errorf("Expected one collapsed fact row with quantity 7, got %d", collapsed)
	}
}

func TestRunStampsEveryRow(t *testing.T) {
	s := newSink(t)
	if _, err := newPipeline(s, true).Run(context.Background(), extract()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, spec := range sink.StarTables(sink.DefaultTableNames()) {
		for _, r := range committed(t, s, spec.Name) {
			if r[len(r)-1] != loadTime {
				t.Fatalf("Table %s: expected stamp %v, got %v", spec.Name, loadTime, r[len(r)-1])
			}
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	s := newSink(t)
	p := newPipeline(s, true)

	if _, err := p.Run(context.Background(), extract()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	first := make(map[string][][]any)
	for _, spec := range sink.StarTables(sink.DefaultTableNames()) {
		first[spec.Name] = committed(t, s, spec.Name)
	}

	if _, err := p.Run(context.Background(), extract()); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	for name, rows := range first {
		if !reflect.DeepEqual(rows, committed(t, s, name)) {
			t.Errorf("Table %s changed between identical runs", name)
		}
	}
}

func TestConcurrentMatchesSequential(t *testing.T) {
	ctx := context.Background()
	seq, err := newPipeline(newSink(t), false).Transform(ctx, extract())
	if err != nil {
		t.Fatalf("Sequential transform failed: %v", err)
	}
	par, err := newPipeline(newSink(t), true).Transform(ctx, extract())
	if err != nil {
		t.Fatalf("Concurrent transform failed: %v", err)
	}
	if !reflect.DeepEqual(seq.Dims, par.Dims) {
		t.Error("Expected identical dimensions from sequential and concurrent builds")
	}
	if !reflect.DeepEqual(seq.Facts, par.Facts) {
		t.Error("Expected identical facts from sequential and concurrent builds")
	}
}

// loadBaseline commits one good run and returns the fact rows it left.
func loadBaseline(t *testing.T, s *memory.Sink) [][]any {
	t.Helper()
	if _, err := newPipeline(s, true).Run(context.Background(), extract()); err != nil {
		t.Fatalf("Baseline run failed: %v", err)
	}
	return committed(t, s, "f_transaction")
}

func TestRunIntegrityFailureKeepsPriorState(t *testing.T) {
	s := newSink(t)
	before := loadBaseline(t, s)

	bad := append(extract(), raw("581587", "22613", "PACK OF 20 SPACEBOY NAPKINS", "12", "2011-12-09 12:50:00", "0.85", "12680", "France"))
	_, err := newPipeline(s, true).Run(context.Background(), bad)

	if !errors.Is(err, fact.ErrIntegrity) {
		t.Fatalf("Expected integrity error, got %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageFact {
		t.Errorf("Expected stage %q, got %v", StageFact, err)
	}
	var ie *fact.IntegrityError
	if errors.As(err, &ie) {
		if got := ie.Columns(); !reflect.DeepEqual(got, []string{fact.DateKey}) {
			t.Errorf("Expected only date_key missing, got %v", got)
		}
	}
	if !reflect.DeepEqual(before, committed(t, s, "f_transaction")) {
		t.Error("Expected committed facts to be unchanged")
	}
	if s.Commits() != 1 {
		t.Errorf("Expected no further commits, got %d", s.Commits())
	}
}

func TestRunCastFailureWritesNothing(t *testing.T) {
	s := newSink(t)
	bad := append(extract(), raw("536400", "21730", "GLASS STAR FROSTED", "many", "2010-12-01 12:00:00", "4.25", "17850", "United Kingdom"))

	_, err := newPipeline(s, true).Run(context.Background(), bad)
	if !errors.Is(err, transform.ErrCast) {
		t.Fatalf("Expected cast error, got %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageNormalize {
		t.Errorf("Expected stage %q, got %v", StageNormalize, err)
	}
	if s.Commits() != 0 || s.Rollbacks() != 0 {
		t.Errorf("Expected the sink untouched, got %d commits and %d rollbacks", s.Commits(), s.Rollbacks())
	}
}

func TestRunSinkFailureRollsBack(t *testing.T) {
	tests := []struct {
		name  string
		op    memory.Op
		table string
		stage string
	}{
		{"truncate invoice", memory.OpTruncate, "d_invoice", "sink d_invoice"},
		{"insert product", memory.OpBulkInsert, "d_product", "sink d_product"},
		{"insert fact", memory.OpBulkInsert, "f_transaction", "sink f_transaction"},
		{"commit", memory.OpCommit, "", StageCommit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSink(t)
			before := loadBaseline(t, s)
			dates := committed(t, s, "d_date")
			s.FailOn(tt.op, tt.table)

			_, err := newPipeline(s, true).Run(context.Background(), extract()[:1])
			if !errors.Is(err, memory.ErrInjected) {
				t.Fatalf("Expected injected failure, got %v", err)
			}
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tt.stage {
				t.Errorf("Expected stage %q, got %v", tt.stage, err)
			}
			if s.Rollbacks() != 1 {
				t.Errorf("Expected 1 rollback, got %d", s.Rollbacks())
			}
			if !reflect.DeepEqual(before, committed(t, s, "f_transaction")) {
				t.Error("Expected committed facts to be unchanged")
			}
			if !reflect.DeepEqual(dates, committed(t, s, "d_date")) {
				t.Error("Expected committed dates to be unchanged")
			}
		})
	}
}

func TestRunHonorsTableNames(t *testing.T) {
	names := sink.TableNames{
		Date: "dw.date", Invoice: "dw.invoice", Customer: "dw.customer",
		Product: "dw.product", Transaction: "dw.sales",
	}
	s := memory.New()
	if err := s.EnsureSchema(context.Background(), sink.StarTables(names), false); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	p := New(s, Options{Tables: names, Logger: zerolog.Nop()})
	res, err := p.Run(context.Background(), extract())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Rows("dw.sales") != 5 {
		t.Errorf("Expected 5 rows in dw.sales, got %d", res.Rows("dw.sales"))
	}
}
