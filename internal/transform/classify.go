package transform

import "github.com/pgEdge/pgedge-retailstar/internal/model"

type classPair struct {
	quantity model.Class
	price    model.Class
}

// invoiceTypes lists every explicitly classified combination. Anything else
// is model.Unknown.
var invoiceTypes = map[classPair]model.InvoiceType{
	{model.Negative, model.Positive}: model.Purchase,
	{model.Negative, model.Zero}:     model.FreeStock,
	{model.Positive, model.Negative}: model.Adjustment,
	{model.Positive, model.Positive}: model.Sale,
	{model.Positive, model.Zero}:     model.Donation,
}

// Classify maps a (quantity class, price class) pair to an invoice type.
func Classify(quantity, price model.Class) model.InvoiceType {
	if t, ok := invoiceTypes[classPair{quantity, price}]; ok {
		return t
	}
	return model.Unknown
}
