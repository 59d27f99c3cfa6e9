package coupon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewardPercentTotal(t *testing.T) {
	r, ok := Reward(newCoupon("c1", PercentTotal, "10"), []CartLineItem{item("A", "10.00", 1)})
	require.True(t, ok)
	require.Equal(t, cents("1.00"), r.Savings)
	require.Equal(t, "entire purchase", r.AppliedToDescription)
	require.Equal(t, "CODE-c1", r.Code)
}

func TestRewardPercentTotalUsesQuantity(t *testing.T) {
	r, ok := Reward(newCoupon("c1", PercentTotal, "15"), []CartLineItem{item("A", "3.33", 3), item("B", "0.99", 1)})
	require.True(t, ok)
	// 15% of 10.98 = 1.647
	require.Equal(t, cents("1.65"), r.Savings)
}

func TestRewardPercentSingleItemPicksHighestUnitPrice(t *testing.T) {
	pool := []CartLineItem{item("B", "5.00", 4), item("A", "20.00", 1)}
	r, ok := Reward(newCoupon("c1", PercentSingleItem, "25"), pool)
	require.True(t, ok)
	require.Equal(t, cents("5.00"), r.Savings)
	require.Equal(t, "1 × Product A", r.AppliedToDescription)
}

func TestRewardPercentSingleItemTieKeepsInputOrder(t *testing.T) {
	pool := []CartLineItem{item("X", "8.00", 1), item("Y", "8.00", 1)}
	computed, ok := computeReward(newCoupon("c1", PercentSingleItem, "50"), pool, nil)
	require.True(t, ok)
	require.Equal(t, "X", computed.claimed)
}

func TestRewardPercentSingleItemDiscountsOneUnit(t *testing.T) {
	r, ok := Reward(newCoupon("c1", PercentSingleItem, "50"), []CartLineItem{item("A", "4.00", 10)})
	require.True(t, ok)
	require.Equal(t, cents("2.00"), r.Savings)
}

func TestRewardPercentSingleItemSkipsClaimed(t *testing.T) {
	pool := []CartLineItem{item("A", "20.00", 1), item("B", "5.00", 1)}
	computed, ok := computeReward(newCoupon("c1", PercentSingleItem, "20"), pool, map[string]struct{}{"A": {}})
	require.True(t, ok)
	require.Equal(t, "B", computed.claimed)
	require.Equal(t, cents("1.00"), computed.Savings)

	_, ok = computeReward(newCoupon("c1", PercentSingleItem, "20"), pool, map[string]struct{}{"A": {}, "B": {}})
	require.False(t, ok)
}

func TestRewardFixedCappedAtSubtotal(t *testing.T) {
	r, ok := Reward(newCoupon("c1", Fixed, "5.00"), []CartLineItem{item("A", "3.50", 1)})
	require.True(t, ok)
	require.Equal(t, cents("3.50"), r.Savings)

	r, ok = Reward(newCoupon("c1", Fixed, "2.00"), []CartLineItem{item("A", "3.50", 1)})
	require.True(t, ok)
	require.Equal(t, cents("2.00"), r.Savings)
}

func TestRewardFixedZeroSubtotal(t *testing.T) {
	_, ok := Reward(newCoupon("c1", Fixed, "2.00"), []CartLineItem{item("A", "0.00", 1)})
	require.False(t, ok)
}

func TestRewardCategoryPercent(t *testing.T) {
	pool := []CartLineItem{
		inCategory(item("milk", "2.00", 2), "Dairy"),
		inCategory(item("bread", "3.00", 1), "bakery"),
		inCategory(item("soap", "9.00", 1), "household"),
	}
	r, ok := Reward(categoryCoupon("c1", "50", "dairy", "Bakery"), pool)
	require.True(t, ok)
	require.Equal(t, cents("3.50"), r.Savings)
	require.Equal(t, "dairy, Bakery items", r.AppliedToDescription)

	_, ok = Reward(categoryCoupon("c2", "50", "frozen"), pool)
	require.False(t, ok)

	// Surrounding spaces on either side are ignored.
	spaced := append(pool, inCategory(item("cake", "4.00", 1), " BAKERY "))
	r, ok = Reward(categoryCoupon("c3", "50", "  bakery"), spaced)
	require.True(t, ok)
	require.Equal(t, cents("3.50"), r.Savings)
}

func TestRewardExcludeSaleItems(t *testing.T) {
	pool := []CartLineItem{onSale(item("A", "20.00", 1)), item("B", "5.00", 1)}
	c := newCoupon("c1", PercentSingleItem, "50")
	c.ExcludeSaleItems = true
	r, ok := Reward(c, pool)
	require.True(t, ok)
	require.Equal(t, cents("2.50"), r.Savings)

	total := newCoupon("c2", PercentTotal, "10")
	total.ExcludeSaleItems = true
	r, ok = Reward(total, pool)
	require.True(t, ok)
	require.Equal(t, cents("0.50"), r.Savings)
	require.Equal(t, "entire purchase excluding sale items", r.AppliedToDescription)
}

func TestRewardAllItemsOnSale(t *testing.T) {
	pool := []CartLineItem{onSale(item("A", "20.00", 1)), onSale(item("B", "5.00", 1))}
	for _, typ := range []Type{PercentTotal, PercentSingleItem, Fixed} {
		c := newCoupon("c1", typ, "10")
		c.ExcludeSaleItems = true
		_, ok := Reward(c, pool)
		require.False(t, ok, typ)
	}
	c := categoryCoupon("c1", "10", "grocery")
	c.ExcludeSaleItems = true
	_, ok := Reward(c, pool)
	require.False(t, ok)
}

func TestRewardEmptyPool(t *testing.T) {
	for _, c := range []Coupon{
		newCoupon("a", PercentTotal, "10"),
		newCoupon("b", PercentSingleItem, "10"),
		newCoupon("c", Fixed, "1"),
		categoryCoupon("d", "10", "grocery"),
	} {
		_, ok := Reward(c, nil)
		require.False(t, ok, c.Type)
	}
}

func TestRewardDoesNotMutatePool(t *testing.T) {
	pool := []CartLineItem{onSale(item("A", "20.00", 1)), item("B", "5.00", 1)}
	snapshot := append([]CartLineItem(nil), pool...)
	c := newCoupon("c1", PercentSingleItem, "50")
	c.ExcludeSaleItems = true
	first, _ := Reward(c, pool)
	second, _ := Reward(c, pool)
	require.Equal(t, snapshot, pool)
	require.Equal(t, first, second)
}
