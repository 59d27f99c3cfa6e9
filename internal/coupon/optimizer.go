package coupon

import (
	"fmt"
	"math/bits"
	"slices"
	"sort"

	"github.com/noah-isme/grocery-saver/internal/money"
)

// DefaultMaxCombinable caps how many combinable coupons the optimizer
// enumerates per store. 2^12 subsets stays well under a millisecond.
const DefaultMaxCombinable = 12

// maxEnumerable is the hard ceiling regardless of configuration.
const maxEnumerable = 20

// Optimizer searches combinable coupons for the subset with the largest
// total savings and only reports a stack when it beats the best single coupon.
type Optimizer struct {
	MaxCombinable int
}

// candidate holds everything a stack needs from one coupon, computed once per
// cart. Rewards that do not depend on other members are stored whole; a
// single-item coupon keeps its best line per product instead.
type candidate struct {
	coupon     Coupon
	standalone money.Money
	reward     RewardResult
	ranked     []rankedItem
}

// rankedItem is the highest-priced line of one product, with the savings a
// single-item coupon would take from it.
type rankedItem struct {
	productID   string
	savings     money.Money
	description string
}

// member is one coupon applied inside a stack. pick indexes the ranked item a
// single-item coupon claimed.
type member struct {
	cand    int
	savings money.Money
	pick    int
}

type stack struct {
	members []member
	ids     []string
	total   money.Money
}

// Optimize returns the best selection for a premium user.
func (o Optimizer) Optimize(eligible []Coupon, pool []CartLineItem) SelectionResult {
	subtotal := Subtotal(pool)
	if len(pool) == 0 {
		return noDiscount(subtotal)
	}
	single := SelectBest(eligible, pool)

	candidates := o.candidates(eligible, pool)
	if len(candidates) < 2 {
		return single
	}

	var (
		best    stack
		found   bool
		current = stack{members: make([]member, 0, len(candidates))}
		claimed = make([]string, 0, len(candidates))
	)
	n := uint(len(candidates))
	for mask := uint64(1); mask < 1<<n; mask++ {
		if bits.OnesCount64(mask) < 2 {
			continue
		}
		if !evaluateStack(candidates, mask, subtotal, &current, claimed[:0]) {
			continue
		}
		if !found || better(candidates, &current, &best) {
			best.members = append(best.members[:0], current.members...)
			best.ids = append(best.ids[:0], current.ids...)
			best.total = current.total
			found = true
		}
	}
	if !found || best.total <= single.TotalSavings {
		return single
	}
	return SelectionResult{
		Chosen:        results(candidates, best.members),
		TotalSavings:  best.total,
		StrategyLabel: StrategyStacked,
		FinalSubtotal: subtotal.Sub(best.total),
	}
}

// candidates keeps combinable coupons that save money on their own, ordered by
// standalone savings descending then id. That order is also the application
// order inside every stack.
func (o Optimizer) candidates(eligible []Coupon, pool []CartLineItem) []candidate {
	out := make([]candidate, 0, len(eligible))
	for _, c := range eligible {
		if !c.CanCombine {
			continue
		}
		r, ok := computeReward(c, pool, nil)
		if !ok || !r.Savings.IsPositive() {
			continue
		}
		out = append(out, candidate{coupon: c, standalone: r.Savings, reward: r.RewardResult})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].standalone != out[j].standalone {
			return out[i].standalone > out[j].standalone
		}
		return out[i].coupon.ID < out[j].coupon.ID
	})
	limit := o.MaxCombinable
	if limit <= 0 {
		limit = DefaultMaxCombinable
	}
	if limit > maxEnumerable {
		limit = maxEnumerable
	}
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		if out[i].coupon.Type == PercentSingleItem {
			out[i].ranked = rankItems(out[i].coupon, pool, len(out))
		}
	}
	return out
}

// rankItems orders the products c may discount by their highest unit price,
// earliest line first on ties. A stack claims at most one product per member,
// so only the first limit products can ever be reached.
func rankItems(c Coupon, pool []CartLineItem, limit int) []rankedItem {
	type line struct {
		item  CartLineItem
		index int
	}
	items := eligibleItems(c, pool)
	seen := make(map[string]int, len(items))
	lines := make([]line, 0, len(items))
	for i, it := range items {
		at, ok := seen[it.ProductID]
		if !ok {
			seen[it.ProductID] = len(lines)
			lines = append(lines, line{item: it, index: i})
			continue
		}
		if it.UnitPrice > lines[at].item.UnitPrice {
			lines[at] = line{item: it, index: i}
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].item.UnitPrice != lines[j].item.UnitPrice {
			return lines[i].item.UnitPrice > lines[j].item.UnitPrice
		}
		return lines[i].index < lines[j].index
	})
	if len(lines) > limit {
		lines = lines[:limit]
	}

	out := make([]rankedItem, 0, len(lines))
	for _, l := range lines {
		savings, err := money.MulPercent(l.item.UnitPrice, c.DiscountValue)
		if err != nil {
			break
		}
		out = append(out, rankedItem{
			productID:   l.item.ProductID,
			savings:     savings,
			description: fmt.Sprintf("1 × %s", displayName(l.item)),
		})
	}
	return out
}

// evaluateStack applies the members selected by mask in candidate order,
// filling s. Single-item coupons claim distinct products; a member that finds
// nothing left to discount, or whose savings are fully absorbed by the
// subtotal cap, invalidates the stack.
func evaluateStack(candidates []candidate, mask uint64, subtotal money.Money, s *stack, claimed []string) bool {
	s.members = s.members[:0]
	s.ids = s.ids[:0]
	s.total = 0
	remaining := subtotal
	for i := range candidates {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		cand := &candidates[i]
		m := member{cand: i, savings: cand.reward.Savings, pick: -1}
		if cand.coupon.Type == PercentSingleItem {
			m.pick = nextUnclaimed(cand.ranked, claimed)
			if m.pick < 0 {
				return false
			}
			m.savings = cand.ranked[m.pick].savings
			claimed = append(claimed, cand.ranked[m.pick].productID)
		}
		if !m.savings.IsPositive() {
			return false
		}
		if m.savings > remaining {
			m.savings = remaining
		}
		if !m.savings.IsPositive() {
			return false
		}
		remaining = remaining.Sub(m.savings)
		s.total = s.total.Add(m.savings)
		s.members = append(s.members, m)
	}
	return true
}

func nextUnclaimed(ranked []rankedItem, claimed []string) int {
	for i, r := range ranked {
		if !slices.Contains(claimed, r.productID) {
			return i
		}
	}
	return -1
}

// better orders stacks by total savings, then fewer members, then the
// lexicographically smallest sorted id tuple. Ids are only sorted when the
// first two keys tie.
func better(candidates []candidate, a, b *stack) bool {
	if a.total != b.total {
		return a.total > b.total
	}
	if len(a.members) != len(b.members) {
		return len(a.members) < len(b.members)
	}
	a.ids = sortedIDs(candidates, a.members, a.ids)
	b.ids = sortedIDs(candidates, b.members, b.ids)
	for i := range a.ids {
		if a.ids[i] != b.ids[i] {
			return a.ids[i] < b.ids[i]
		}
	}
	return false
}

func sortedIDs(candidates []candidate, members []member, buf []string) []string {
	if len(buf) == len(members) {
		return buf
	}
	buf = buf[:0]
	for _, m := range members {
		buf = append(buf, candidates[m.cand].coupon.ID)
	}
	sort.Strings(buf)
	return buf
}

// results expands stack members into the rewards reported to callers.
func results(candidates []candidate, members []member) []RewardResult {
	out := make([]RewardResult, 0, len(members))
	for _, m := range members {
		cand := candidates[m.cand]
		r := cand.reward
		if m.pick >= 0 {
			r.AppliedToDescription = cand.ranked[m.pick].description
		}
		r.Savings = m.savings
		out = append(out, r)
	}
	return out
}
