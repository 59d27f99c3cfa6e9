package coupon

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-saver/internal/money"
)

// ErrInvalidInput marks caller bugs: malformed coupons or cart lines.
var ErrInvalidInput = errors.New("invalid input")

const (
	// MaxUnitPrice bounds a single unit price (1,000,000.00).
	MaxUnitPrice money.Money = 100_000_000
	// MaxQuantity bounds the quantity of one line.
	MaxQuantity = 10_000
	// MaxLineItems bounds the number of lines in one pool.
	MaxLineItems = 10_000
)

var hundred = decimal.NewFromInt(100)

// ValidationError describes one offending field of a coupon or cart line.
type ValidationError struct {
	Subject string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Subject, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// ValidateCoupon checks the structural invariants of a coupon definition.
func ValidateCoupon(c Coupon) error {
	subject := fmt.Sprintf("coupon %q", c.ID)
	fail := func(field, reason string) error {
		return &ValidationError{Subject: subject, Field: field, Reason: reason}
	}
	if c.ID == "" {
		return fail("id", "is required")
	}
	if !c.Type.Valid() {
		return fail("type", fmt.Sprintf("unknown type %q", c.Type))
	}
	if c.Type.IsPercent() {
		if !c.DiscountValue.IsPositive() || c.DiscountValue.GreaterThan(hundred) {
			return fail("discountValue", "percentage must be in (0, 100]")
		}
	} else {
		if !c.DiscountValue.IsPositive() {
			return fail("discountValue", "amount must be positive")
		}
		if _, err := money.FromDecimal(c.DiscountValue); err != nil {
			return fail("discountValue", err.Error())
		}
	}
	if c.Type == CategoryPercent && len(c.ApplicableCategories) == 0 {
		return fail("applicableCategories", "required for category_percent")
	}
	for _, cat := range c.ApplicableCategories {
		if strings.TrimSpace(cat) == "" {
			return fail("applicableCategories", "entries must not be blank")
		}
	}
	if c.MinPurchase != nil && *c.MinPurchase < 0 {
		return fail("minPurchase", "must not be negative")
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && c.ValidUntil.Before(*c.ValidFrom) {
		return fail("validUntil", "precedes validFrom")
	}
	for _, d := range c.ValidDaysOfWeek {
		if d < 0 || d > 6 {
			return fail("validDaysOfWeek", fmt.Sprintf("day %d outside 0..6", d))
		}
	}
	return nil
}

// ValidateCoupons validates each coupon and rejects duplicate ids.
func ValidateCoupons(coupons []Coupon) error {
	seen := make(map[string]struct{}, len(coupons))
	for _, c := range coupons {
		if err := ValidateCoupon(c); err != nil {
			return err
		}
		if _, dup := seen[c.ID]; dup {
			return &ValidationError{Subject: fmt.Sprintf("coupon %q", c.ID), Field: "id", Reason: "duplicate id"}
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// ValidateItems checks every cart line of a pool.
func ValidateItems(pool []CartLineItem) error {
	if len(pool) > MaxLineItems {
		return &ValidationError{Subject: "cart", Field: "items", Reason: fmt.Sprintf("more than %d lines", MaxLineItems)}
	}
	for i, it := range pool {
		subject := fmt.Sprintf("item[%d] %q", i, it.ProductID)
		if it.ProductID == "" {
			return &ValidationError{Subject: subject, Field: "productId", Reason: "is required"}
		}
		if it.Quantity <= 0 || it.Quantity > MaxQuantity {
			return &ValidationError{Subject: subject, Field: "quantity", Reason: fmt.Sprintf("must be in 1..%d", MaxQuantity)}
		}
		if it.UnitPrice < 0 || it.UnitPrice > MaxUnitPrice {
			return &ValidationError{Subject: subject, Field: "unitPrice", Reason: "out of range"}
		}
	}
	return nil
}
