package coupon

import (
	"fmt"
	"strings"

	"github.com/noah-isme/grocery-saver/internal/money"
)

const appliedToEntirePurchase = "entire purchase"

// reward pairs a RewardResult with the product a single-item coupon consumed.
type reward struct {
	RewardResult
	claimed string
}

// Reward computes the savings of c against pool. ok is false when the coupon
// has nothing it may discount. pool is never modified.
func Reward(c Coupon, pool []CartLineItem) (RewardResult, bool) {
	r, ok := computeReward(c, pool, nil)
	return r.RewardResult, ok
}

// computeReward is Reward with a set of products already consumed by other
// single-item coupons of the same stack.
func computeReward(c Coupon, pool []CartLineItem, claimed map[string]struct{}) (reward, bool) {
	items := eligibleItems(c, pool)
	out := reward{RewardResult: RewardResult{CouponID: c.ID, Code: c.Code}}

	switch c.Type {
	case PercentTotal:
		if len(items) == 0 {
			return reward{}, false
		}
		savings, err := money.MulPercent(Subtotal(items), c.DiscountValue)
		if err != nil {
			return reward{}, false
		}
		out.Savings = savings
		out.AppliedToDescription = describeWhole(c, len(items) != len(pool))

	case PercentSingleItem:
		best := -1
		for i, it := range items {
			if _, taken := claimed[it.ProductID]; taken {
				continue
			}
			if best < 0 || it.UnitPrice > items[best].UnitPrice {
				best = i
			}
		}
		if best < 0 {
			return reward{}, false
		}
		target := items[best]
		savings, err := money.MulPercent(target.UnitPrice, c.DiscountValue)
		if err != nil {
			return reward{}, false
		}
		out.Savings = savings
		out.AppliedToDescription = fmt.Sprintf("1 × %s", displayName(target))
		out.claimed = target.ProductID

	case Fixed:
		subtotal := Subtotal(items)
		if !subtotal.IsPositive() {
			return reward{}, false
		}
		amount, err := money.FromDecimal(c.DiscountValue)
		if err != nil {
			return reward{}, false
		}
		out.Savings = money.Min(amount, subtotal)
		out.AppliedToDescription = describeWhole(c, len(items) != len(pool))

	case CategoryPercent:
		matched := make([]CartLineItem, 0, len(items))
		for _, it := range items {
			if inCategories(it.Category, c.ApplicableCategories) {
				matched = append(matched, it)
			}
		}
		if len(matched) == 0 {
			return reward{}, false
		}
		savings, err := money.MulPercent(Subtotal(matched), c.DiscountValue)
		if err != nil {
			return reward{}, false
		}
		out.Savings = savings
		out.AppliedToDescription = strings.Join(c.ApplicableCategories, ", ") + " items"

	default:
		return reward{}, false
	}
	return out, true
}

func eligibleItems(c Coupon, pool []CartLineItem) []CartLineItem {
	if !c.ExcludeSaleItems {
		return pool
	}
	out := make([]CartLineItem, 0, len(pool))
	for _, it := range pool {
		if !it.IsOnSale {
			out = append(out, it)
		}
	}
	return out
}

func inCategories(category string, categories []string) bool {
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(category)) {
			return true
		}
	}
	return false
}

func describeWhole(c Coupon, excluded bool) string {
	if c.ExcludeSaleItems && excluded {
		return appliedToEntirePurchase + " excluding sale items"
	}
	return appliedToEntirePurchase
}

func displayName(it CartLineItem) string {
	if name := strings.TrimSpace(it.ProductName); name != "" {
		return name
	}
	return it.ProductID
}
