package datagen

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-retailstar/internal/sink"
)

// Header is the column layout of a generated extract.
var Header = []string{
	"Invoice", "StockCode", "Description", "Quantity",
	"InvoiceDate", "Price", "Customer ID", "Country",
}

// TimestampLayout formats InvoiceDate values.
const TimestampLayout = "2006-01-02 15:04:05"

// Countries with weights roughly matching a UK online retailer. The aliased
// and unknown spellings are kept so generated data exercises the country
// canonicalization.
var (
	countries = []string{
		"United Kingdom", "EIRE", "Germany", "France", "Netherlands", "Spain",
		"Switzerland", "Belgium", "Portugal", "Australia", "RSA", "Unspecified",
		"West Indies", "U.K.",
	}
	countryWeights = []int{820, 30, 30, 25, 10, 8, 6, 6, 5, 4, 2, 2, 1, 1}
)

// Options configures an extract.
type Options struct {
	// Rows is the number of invoice lines to write.
	Rows int

	// Start and End bound invoice timestamps.
	Start time.Time
	End   time.Time

	// Products and Customers size the catalogue and the customer base.
	Products  int
	Customers int

	// ProgressInterval is how often to log progress (in rows).
	ProgressInterval int
}

// DefaultOptions returns options producing rows lines inside the calendar
// the date dimension covers.
func DefaultOptions(rows int) Options {
	return Options{
		Rows:             rows,
		Start:            time.Date(2009, 12, 1, 7, 0, 0, 0, time.UTC),
		End:              time.Date(2010, 12, 9, 20, 0, 0, 0, time.UTC),
		Products:         max(rows/20, 10),
		Customers:        max(rows/50, 5),
		ProgressInterval: 100000,
	}
}

type product struct {
	code        string
	description string
	price       float64
}

type customer struct {
	id      string
	country string
}

// InvoiceGenerator writes synthetic invoice lines in the source CSV layout.
type InvoiceGenerator struct {
	faker *Faker
	opts  Options
	log   zerolog.Logger

	products  []product
	customers []customer
	invoiceNo int
}

// NewInvoiceGenerator creates a generator. The same seeded faker and options
// always produce the same extract.
func NewInvoiceGenerator(f *Faker, opts Options, log zerolog.Logger) *InvoiceGenerator {
	g := &InvoiceGenerator{faker: f, opts: opts, log: log, invoiceNo: 489434}
	g.products = g.catalogue()
	g.customers = g.customerBase()
	return g
}

func (g *InvoiceGenerator) catalogue() []product {
	seen := make(map[string]bool)
	products := make([]product, 0, g.opts.Products)
	for len(products) < g.opts.Products {
		code := g.faker.Digits(5)
		if g.faker.Chance(0.2) {
			code += g.faker.Letter()
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		products = append(products, product{
			code:        code,
			description: g.faker.ProductName(),
			price:       g.faker.Price(0.29, 25),
		})
	}
	return products
}

func (g *InvoiceGenerator) customerBase() []customer {
	customers := make([]customer, g.opts.Customers)
	for i := range customers {
		customers[i] = customer{
			id:      strconv.Itoa(12346+i) + ".0",
			country: ChooseWeighted(g.faker, countries, countryWeights),
		}
	}
	return customers
}

// Generate writes the header and opts.Rows lines to w.
func (g *InvoiceGenerator) Generate(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, err
	}

	progress := sink.NewProgressReporter(g.log, "extract", int64(g.opts.Rows), int64(g.opts.ProgressInterval)).
		WithMessage("Generating rows")

	written := 0
	for written < g.opts.Rows {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		lines := g.invoice(min(g.faker.Int(1, 12), g.opts.Rows-written))
		for _, rec := range lines {
			if err := cw.Write(rec); err != nil {
				return written, err
			}
			written++
			progress.Update(1)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, err
	}
	return written, nil
}

// WriteFile generates the extract into path, creating parent directories.
func (g *InvoiceGenerator) WriteFile(ctx context.Context, path string) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output: %w", err)
	}

	n, err := g.Generate(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", path, err)
	}

	g.log.Info().Str("path", path).Int("rows", n).Msg("Extract written")
	return n, nil
}

// invoice produces the lines of one invoice. Every line shares the invoice
// number, timestamp and customer.
func (g *InvoiceGenerator) invoice(lines int) [][]string {
	g.invoiceNo++
	no := strconv.Itoa(g.invoiceNo)

	kind := ChooseWeighted(g.faker,
		[]string{"sale", "cancel", "adjust", "test"},
		[]int{950, 40, 5, 5},
	)
	switch kind {
	case "cancel":
		no = "C" + no
	case "adjust":
		no = "A" + no
		lines = 1
	}

	ts := g.faker.DateRange(g.opts.Start, g.opts.End).Truncate(time.Minute)
	cust := Choose(g.faker, g.customers)
	custID := cust.id
	if g.faker.Chance(0.2) {
		custID = ""
	}

	out := make([][]string, 0, lines)
	for range lines {
		p := Choose(g.faker, g.products)
		qty := g.faker.Int(1, 24)
		price := p.price
		desc := g.describe(p)

		switch {
		case kind == "cancel":
			qty = -qty
		case kind == "adjust":
			p.code, desc, qty, price = "B", "Adjust bad debt", 1, -g.faker.Price(100, 12000)
		case kind == "test":
			p.code, desc = "TEST"+g.faker.Digits(3), "This is a test product."
		case g.faker.Chance(0.01):
			price = 0
		case g.faker.Chance(0.005):
			qty, price = -qty, 0
		}

		out = append(out, []string{
			no,
			p.code,
			desc,
			strconv.Itoa(qty),
			ts.Format(TimestampLayout),
			strconv.FormatFloat(price, 'f', 2, 64),
			custID,
			cust.country,
		})
	}
	return out
}

// describe usually returns the catalogue description and sometimes a noisy
// variant, so the product dimension has to pick the majority spelling.
func (g *InvoiceGenerator) describe(p product) string {
	switch {
	case g.faker.Chance(0.01):
		return ""
	case g.faker.Chance(0.02):
		return strings.ToLower(p.description)
	case g.faker.Chance(0.02):
		return p.description + " ,"
	default:
		return p.description
	}
}
