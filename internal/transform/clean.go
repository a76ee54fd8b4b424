package transform

import (
	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-retailstar/internal/model"
)

// Clean runs the full cleaning chain over an extract: normalization, invoice
// classification, then country and code canonicalization. The returned lines
// keep source order.
func Clean(log zerolog.Logger, raw []model.RawInvoiceLine) ([]model.Line, Stats, error) {
	lines, stats, err := NewNormalizer(log).Normalize(raw)
	if err != nil {
		return nil, stats, err
	}

	for i := range lines {
		l := &lines[i]
		l.Type = Classify(l.QuantityClass, l.PriceClass)
		l.Country = NormalizeCountry(l.Country)
		l.Code = NormalizeCode(l.Code)
	}

	return lines, stats, nil
}
