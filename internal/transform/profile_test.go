package transform

import (
	"testing"

	"github.com/pgEdge/pgedge-retailstar/internal/model"
)

func TestProfile(t *testing.T) {
	lines := []model.Line{
		{QuantityClass: model.Positive, PriceClass: model.Positive},
		{QuantityClass: model.Positive, PriceClass: model.Positive},
		{QuantityClass: model.Negative, PriceClass: model.Positive},
		{QuantityClass: model.Positive, PriceClass: model.Zero},
	}

	rows := Profile(lines)
	if len(rows) != 3 {
		t.Fatalf("Expected 3 profile rows, got %d", len(rows))
	}
	if rows[0].Type != model.Sale || rows[0].Count != 2 {
		t.Errorf("Expected Sale x2 first, got %s x%d", rows[0].Type, rows[0].Count)
	}
	// Ties order by quantity class then price class.
	if rows[1].QuantityClass != model.Negative || rows[2].QuantityClass != model.Positive {
		t.Errorf("Unexpected tie order: %+v", rows[1:])
	}
	if rows[2].Type != model.Donation {
		t.Errorf("Expected Donation, got %s", rows[2].Type)
	}
}
