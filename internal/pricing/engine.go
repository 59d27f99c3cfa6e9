package pricing

import "github.com/noah-isme/grocery-saver/internal/money"

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal money.Money `json:"subtotal"`
	Discount money.Money `json:"discount"`
	Total    money.Money `json:"total"`
}

// Compute derives the totals for one priced group. The discount is clamped to
// [0, subtotal] so the total is never negative.
func Compute(subtotal, discount money.Money) Summary {
	if subtotal < 0 {
		subtotal = 0
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

// Combine sums several summaries into a grand summary.
func Combine(parts ...Summary) Summary {
	var out Summary
	for _, p := range parts {
		out.Subtotal = out.Subtotal.Add(p.Subtotal)
		out.Discount = out.Discount.Add(p.Discount)
		out.Total = out.Total.Add(p.Total)
	}
	return out
}
