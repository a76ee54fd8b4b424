//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package dimension builds the date, invoice, customer and product dimensions
// of the star schema from cleaned invoice lines.
package dimension

import "github.com/pgEdge/pgedge-retailstar/internal/model"

// DimensionBuilder derives the rows of one dimension table. Builders are pure:
// they never touch the sink.
type DimensionBuilder[R any] interface {
	// Table returns the target table name.
	Table() string

	// Build derives deduplicated rows with dense surrogate keys.
	Build(lines []model.Line) []R
}

// keyer hands out dense surrogate keys starting at 1 in the order natural
// keys are first seen.
type keyer[K comparable] struct {
	keys map[K]int
}

func newKeyer[K comparable](capacity int) *keyer[K] {
	return &keyer[K]{keys: make(map[K]int, capacity)}
}

// key returns the surrogate key for k and whether k was seen for the first time.
func (k *keyer[K]) key(natural K) (int, bool) {
	if id, ok := k.keys[natural]; ok {
		return id, false
	}
	id := len(k.keys) + 1
	k.keys[natural] = id
	return id, true
}
