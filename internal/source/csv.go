//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package source reads the flat invoice-line extract.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/pgEdge/pgedge-retailstar/internal/model"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing source column")

// Options controls how the extract is parsed.
type Options struct {
	// Encoding names the file's character set, e.g. utf-8, latin1 or
	// windows-1252. Empty means utf-8.
	Encoding string

	// Delimiter separates fields. Zero means a comma.
	Delimiter rune
}

// field identifies a RawInvoiceLine column.
type field int

const (
	fInvoice field = iota
	fStockCode
	fDescription
	fQuantity
	fInvoiceDate
	fPrice
	fCustomerID
	fCountry
	numFields
)

// headers maps accepted header names to fields. The second group covers the
// older single-year extract naming.
var headers = map[string]field{
	"Invoice":     fInvoice,
	"StockCode":   fStockCode,
	"Description": fDescription,
	"Quantity":    fQuantity,
	"InvoiceDate": fInvoiceDate,
	"Price":       fPrice,
	"Customer ID": fCustomerID,
	"Country":     fCountry,

	"InvoiceNo":  fInvoice,
	"UnitPrice":  fPrice,
	"CustomerID": fCustomerID,
}

var fieldNames = [numFields]string{
	"Invoice", "StockCode", "Description", "Quantity",
	"InvoiceDate", "Price", "Customer ID", "Country",
}

// naValues are cell texts read as missing values.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// Encoding resolves a character set name. A nil encoding means utf-8.
func Encoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return enc, nil
}

// Reader parses CSV extracts into raw invoice lines.
type Reader struct {
	opts Options
	enc  encoding.Encoding
	log  zerolog.Logger
}

// NewReader validates opts and returns a reader.
func NewReader(opts Options, log zerolog.Logger) (*Reader, error) {
	enc, err := Encoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return &Reader{opts: opts, enc: enc, log: log}, nil
}

// ReadFile reads the extract at path.
func (r *Reader) ReadFile(ctx context.Context, path string) ([]model.RawInvoiceLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	lines, err := r.Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

// Read parses every record of in. Columns are matched by header name and
// may appear in any order; unknown columns are ignored.
func (r *Reader) Read(ctx context.Context, in io.Reader) ([]model.RawInvoiceLine, error) {
	if r.enc != nil {
		in = transform.NewReader(in, r.enc.NewDecoder())
	}

	cr := csv.NewReader(in)
	cr.Comma = r.opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read header: empty source")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIx, err := mapHeader(hdr)
	if err != nil {
		return nil, err
	}

	var out []model.RawInvoiceLine
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		line, _ := cr.FieldPos(0)
		var v [numFields]model.Text
		for f, si := range colIx {
			if si < len(rec) {
				v[f] = cell(rec[si])
			}
		}
		out = append(out, model.RawInvoiceLine{
			Line:        line,
			Invoice:     v[fInvoice],
			StockCode:   v[fStockCode],
			Description: v[fDescription],
			Quantity:    v[fQuantity],
			InvoiceDate: v[fInvoiceDate],
			Price:       v[fPrice],
			CustomerID:  v[fCustomerID],
			Country:     v[fCountry],
		})
	}

	r.log.Debug().Int("rows", len(out)).Msg("Read source extract")
	return out, nil
}

func mapHeader(hdr []string) ([numFields]int, error) {
	var colIx [numFields]int
	for i := range colIx {
		colIx[i] = -1
	}

	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		f, ok := headers[strings.TrimSpace(h)]
		if ok && colIx[f] < 0 {
			colIx[f] = i
		}
	}

	var missing []string
	for f, si := range colIx {
		if si < 0 {
			missing = append(missing, fieldNames[f])
		}
	}
	if len(missing) > 0 {
		return colIx, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return colIx, nil
}

func cell(s string) model.Text {
	if _, na := naValues[s]; na {
		return model.Text{}
	}
	return model.NewText(s)
}
