package coupon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-saver/internal/money"
)

// Wednesday.
var testNow = time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)

func newCoupon(id string, typ Type, value string) Coupon {
	return Coupon{
		ID:            id,
		Code:          "CODE-" + id,
		Type:          typ,
		DiscountValue: decimal.RequireFromString(value),
		IsActive:      true,
		CanCombine:    true,
	}
}

func categoryCoupon(id, value string, categories ...string) Coupon {
	c := newCoupon(id, CategoryPercent, value)
	c.ApplicableCategories = categories
	return c
}

func item(id, price string, qty int) CartLineItem {
	return CartLineItem{
		ProductID:   id,
		ProductName: "Product " + id,
		Category:    "grocery",
		UnitPrice:   money.MustFromString(price),
		Quantity:    qty,
	}
}

func inCategory(it CartLineItem, category string) CartLineItem {
	it.Category = category
	return it
}

func onSale(it CartLineItem) CartLineItem {
	it.IsOnSale = true
	return it
}

func cents(s string) money.Money { return money.MustFromString(s) }

func premium() EvaluationContext {
	return EvaluationContext{Now: testNow, IsPremiumUser: true, HasLoyaltyCard: true}
}

func standard() EvaluationContext {
	return EvaluationContext{Now: testNow}
}

func ptr[T any](v T) *T { return &v }
