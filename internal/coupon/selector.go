package coupon

// SelectBest picks the eligible coupon with the largest savings against the
// full pool. Ties go to the lowest coupon id. When nothing saves money the
// result has no chosen entries and StrategyNone.
func SelectBest(eligible []Coupon, pool []CartLineItem) SelectionResult {
	subtotal := Subtotal(pool)
	if len(pool) == 0 {
		return noDiscount(subtotal)
	}
	var (
		best  reward
		found bool
	)
	for _, c := range eligible {
		r, ok := computeReward(c, pool, nil)
		if !ok || !r.Savings.IsPositive() {
			continue
		}
		if !found || r.Savings > best.Savings || (r.Savings == best.Savings && r.CouponID < best.CouponID) {
			best = r
			found = true
		}
	}
	if !found {
		return noDiscount(subtotal)
	}
	return SelectionResult{
		Chosen:        []RewardResult{best.RewardResult},
		TotalSavings:  best.Savings,
		StrategyLabel: StrategySingle,
		FinalSubtotal: subtotal.Sub(best.Savings),
	}
}
