package transform

import (
	"sort"

	"github.com/pgEdge/pgedge-retailstar/internal/model"
)

// ProfileRow counts the lines sharing one sign-class combination.
type ProfileRow struct {
	QuantityClass model.Class
	PriceClass    model.Class
	Type          model.InvoiceType
	Count         int
}

// Profile groups lines by (quantity class, price class), largest group first.
// It is used to review how an extract splits across invoice types before a
// load.
func Profile(lines []model.Line) []ProfileRow {
	counts := make(map[classPair]int)
	for _, l := range lines {
		counts[classPair{l.QuantityClass, l.PriceClass}]++
	}

	rows := make([]ProfileRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, ProfileRow{
			QuantityClass: k.quantity,
			PriceClass:    k.price,
			Type:          Classify(k.quantity, k.price),
			Count:         n,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].QuantityClass != rows[j].QuantityClass {
			return rows[i].QuantityClass < rows[j].QuantityClass
		}
		return rows[i].PriceClass < rows[j].PriceClass
	})
	return rows
}
