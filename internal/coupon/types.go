package coupon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-saver/internal/money"
)

// Type tags the reward formula of a coupon. The set is closed: adding a
// behaviour means adding a constant here and a branch in Reward.
type Type string

const (
	// PercentTotal discounts a percentage of the whole eligible pool.
	PercentTotal Type = "percent_total"
	// PercentSingleItem discounts one unit of the most expensive eligible item.
	PercentSingleItem Type = "percent_single_item"
	// Fixed discounts an absolute amount, capped at the eligible subtotal.
	Fixed Type = "fixed"
	// CategoryPercent discounts a percentage of items in the listed categories.
	// Categories match case-insensitively, ignoring surrounding spaces, so
	// "Dairy" and " dairy " select the same lines.
	CategoryPercent Type = "category_percent"
)

// Valid reports whether t is one of the known coupon types.
func (t Type) Valid() bool {
	switch t {
	case PercentTotal, PercentSingleItem, Fixed, CategoryPercent:
		return true
	}
	return false
}

// IsPercent reports whether DiscountValue is a percentage for this type.
func (t Type) IsPercent() bool {
	return t == PercentTotal || t == PercentSingleItem || t == CategoryPercent
}

// Coupon is a store-issued discount rule.
type Coupon struct {
	ID                   string          `json:"id"`
	StoreID              string          `json:"storeId,omitempty"`
	Code                 string          `json:"code"`
	Description          string          `json:"description"`
	Type                 Type            `json:"type"`
	DiscountValue        decimal.Decimal `json:"discountValue"`
	MinPurchase          *money.Money    `json:"minPurchase,omitempty"`
	ValidFrom            *time.Time      `json:"validFrom,omitempty"`
	ValidUntil           *time.Time      `json:"validUntil,omitempty"`
	ValidDaysOfWeek      []time.Weekday  `json:"validDaysOfWeek,omitempty"`
	ExcludeSaleItems     bool            `json:"excludeSaleItems"`
	RequiresLoyaltyCard  bool            `json:"requiresLoyaltyCard"`
	IsPremiumOnly        bool            `json:"isPremiumOnly"`
	CanCombine           bool            `json:"canCombine"`
	ApplicableCategories []string        `json:"applicableCategories,omitempty"`
	IsActive             bool            `json:"isActive"`
}

// CartLineItem is one product line of a store group.
type CartLineItem struct {
	ProductID   string      `json:"productId"`
	ProductName string      `json:"productName"`
	Category    string      `json:"category"`
	UnitPrice   money.Money `json:"unitPrice"`
	Quantity    int         `json:"quantity"`
	IsOnSale    bool        `json:"isOnSale"`
}

// LineTotal returns unit price times quantity.
func (it CartLineItem) LineTotal() money.Money {
	return it.UnitPrice.Mul(int64(it.Quantity))
}

// EvaluationContext carries the request-scoped facts eligibility depends on.
type EvaluationContext struct {
	Now            time.Time `json:"now"`
	IsPremiumUser  bool      `json:"isPremiumUser"`
	HasLoyaltyCard bool      `json:"hasLoyaltyCard"`
}

// RewardResult is the outcome of applying one coupon to an item pool.
type RewardResult struct {
	CouponID             string      `json:"couponId"`
	Code                 string      `json:"code"`
	Savings              money.Money `json:"savings"`
	AppliedToDescription string      `json:"appliedTo"`
}

// Strategy labels how a SelectionResult was produced.
type Strategy string

const (
	// StrategyNone means no coupon yielded savings.
	StrategyNone Strategy = "none"
	// StrategySingle means exactly one coupon was chosen.
	StrategySingle Strategy = "single"
	// StrategyStacked means two or more compatible coupons were combined.
	StrategyStacked Strategy = "stacked"
)

// SelectionResult is the engine's answer for one store group.
type SelectionResult struct {
	Chosen        []RewardResult `json:"chosen"`
	TotalSavings  money.Money    `json:"totalSavings"`
	StrategyLabel Strategy       `json:"strategy"`
	FinalSubtotal money.Money    `json:"finalSubtotal"`
}

// Subtotal sums line totals of the pool.
func Subtotal(pool []CartLineItem) money.Money {
	var total money.Money
	for _, it := range pool {
		total = total.Add(it.LineTotal())
	}
	return total
}

func noDiscount(subtotal money.Money) SelectionResult {
	return SelectionResult{
		Chosen:        []RewardResult{},
		StrategyLabel: StrategyNone,
		FinalSubtotal: subtotal,
	}
}
