package domain

import "github.com/shopspring/decimal"

// DefaultShippingFee is the flat fee charged on any non-empty cart.
var DefaultShippingFee = decimal.RequireFromString("19.90")

// CartEntry pairs a product with a quantity of at least one.
type CartEntry struct {
	Product  Product `json:"book"`
	Quantity int     `json:"qty"`
}

// LineTotal returns unit price times quantity.
func (e CartEntry) LineTotal() decimal.Decimal {
	return e.Product.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// IndexOf returns the position of the entry for productID, or -1.
func IndexOf(entries []CartEntry, productID string) int {
	for i, e := range entries {
		if e.Product.ID == productID {
			return i
		}
	}
	return -1
}

// Subtotal is the sum of line totals.
func Subtotal(entries []CartEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.LineTotal())
	}
	return sum
}

// Shipping returns fee when the cart has entries and zero otherwise.
func Shipping(entries []CartEntry, fee decimal.Decimal) decimal.Decimal {
	if len(entries) == 0 {
		return decimal.Zero
	}
	return fee
}

// Total is subtotal plus shipping.
func Total(entries []CartEntry, fee decimal.Decimal) decimal.Decimal {
	return Subtotal(entries).Add(Shipping(entries, fee))
}

// Count is the sum of quantities.
func Count(entries []CartEntry) int {
	n := 0
	for _, e := range entries {
		n += e.Quantity
	}
	return n
}

// Sanitize drops entries that violate the cart invariants: non-positive
// quantities, empty product ids, and duplicates (the first occurrence wins
// and later quantities are merged into it).
func Sanitize(entries []CartEntry) []CartEntry {
	out := make([]CartEntry, 0, len(entries))
	for _, e := range entries {
		if e.Product.ID == "" || e.Quantity <= 0 {
			continue
		}
		if i := IndexOf(out, e.Product.ID); i >= 0 {
			out[i].Quantity += e.Quantity
			continue
		}
		out = append(out, e)
	}
	return out
}

// CartSummary is a snapshot of the cart with its derived values.
type CartSummary struct {
	Items    []CartEntry     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Summarize computes a CartSummary from entries.
func Summarize(entries []CartEntry, fee decimal.Decimal) CartSummary {
	return CartSummary{
		Items:    entries,
		Subtotal: Subtotal(entries),
		Shipping: Shipping(entries, fee),
		Total:    Total(entries, fee),
		Count:    Count(entries),
	}
}
