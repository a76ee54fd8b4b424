package transform

import "strings"

// NormalizeCode uppercases a product code and trims surrounding whitespace,
// so "85123a " and "85123A" join to the same product.
func NormalizeCode(code string) string {
	return strings.TrimSpace(strings.ToUpper(code))
}
