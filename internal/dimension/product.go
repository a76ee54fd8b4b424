package dimension

import (
	"regexp"
	"strings"

	"github.com/pgEdge/pgedge-retailstar/internal/model"
)

// nonAlphanumeric matches everything a canonical description may not contain.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// ProductBuilder derives one row per distinct product code. A code whose
// description drifted over time gets its most frequent description.
type ProductBuilder struct {
	table string
}

// NewProductBuilder creates a product dimension builder for table.
func NewProductBuilder(table string) *ProductBuilder {
	return &ProductBuilder{table: table}
}

// Table returns the target table name.
func (b *ProductBuilder) Table() string {
	return b.table
}

// candidate is one description observed for a code.
type candidate struct {
	description string
	count       int
}

// Build picks each code's most frequent description. On a tie the description
// seen first in line order wins. Keys follow the first occurrence of each code.
func (b *ProductBuilder) Build(lines []model.Line) []model.ProductRow {
	keys := newKeyer[string](len(lines) / 16)
	var codes []string
	// Per code, candidates in first-seen order.
	candidates := make(map[string][]candidate)
	index := make(map[[2]string]int)

	for _, l := range lines {
		if _, first := keys.key(l.Code); first {
			codes = append(codes, l.Code)
		}
		pair := [2]string{l.Code, l.Description}
		if i, ok := index[pair]; ok {
			candidates[l.Code][i].count++
			continue
		}
		index[pair] = len(candidates[l.Code])
		candidates[l.Code] = append(candidates[l.Code], candidate{description: l.Description, count: 1})
	}

	rows := make([]model.ProductRow, 0, len(codes))
	for _, code := range codes {
		best := candidates[code][0]
		for _, c := range candidates[code][1:] {
			if c.count > best.count {
				best = c
			}
		}
		id, _ := keys.key(code)
		rows = append(rows, model.ProductRow{
			Key:         id,
			Code:        code,
			Description: CanonicalDescription(best.description),
		})
	}
	return rows
}

// CanonicalDescription uppercases d, maps a missing description to UNKNOWN,
// trims it and strips every character that is not a letter, digit or space.
func CanonicalDescription(d string) string {
	d = strings.ToUpper(d)
	if d == "NAN" {
		d = "UNKNOWN"
	}
	d = strings.TrimSpace(d)
	return nonAlphanumeric.ReplaceAllString(d, "")
}
