// Package coupon resolves which store coupons apply to a cart group and, for
// premium users, which compatible coupons stack for the largest saving.
//
// Everything here is a pure function of its inputs: no I/O, no shared state,
// safe for concurrent use.
package coupon

import "fmt"

// Engine bundles the tunables of an evaluation.
type Engine struct {
	// MaxCombinable caps combinable coupons considered by the optimizer.
	MaxCombinable int
}

// NewEngine returns an engine with the given stacking cap. Non-positive values
// fall back to DefaultMaxCombinable.
func NewEngine(maxCombinable int) *Engine {
	if maxCombinable <= 0 {
		maxCombinable = DefaultMaxCombinable
	}
	return &Engine{MaxCombinable: maxCombinable}
}

var defaultEngine = NewEngine(DefaultMaxCombinable)

// EvaluateSingle validates the inputs, filters the coupons and returns the
// single best coupon regardless of the premium flag.
func (e *Engine) EvaluateSingle(coupons []Coupon, pool []CartLineItem, ctx EvaluationContext) (SelectionResult, error) {
	eligible, err := e.prepare(coupons, pool, ctx)
	if err != nil {
		return SelectionResult{}, err
	}
	return SelectBest(eligible, pool), nil
}

// EvaluateForGroup validates the inputs, filters the coupons and then runs the
// stacking optimizer for premium users or the single-best selector otherwise.
func (e *Engine) EvaluateForGroup(coupons []Coupon, pool []CartLineItem, ctx EvaluationContext) (SelectionResult, error) {
	eligible, err := e.prepare(coupons, pool, ctx)
	if err != nil {
		return SelectionResult{}, err
	}
	if ctx.IsPremiumUser {
		return Optimizer{MaxCombinable: e.maxCombinable()}.Optimize(eligible, pool), nil
	}
	return SelectBest(eligible, pool), nil
}

func (e *Engine) prepare(coupons []Coupon, pool []CartLineItem, ctx EvaluationContext) ([]Coupon, error) {
	if err := ValidateItems(pool); err != nil {
		return nil, err
	}
	if err := ValidateCoupons(coupons); err != nil {
		return nil, err
	}
	if ctx.Now.IsZero() {
		return nil, fmt.Errorf("evaluation context: now is required: %w", ErrInvalidInput)
	}
	return Filter(coupons, ctx, Subtotal(pool)), nil
}

func (e *Engine) maxCombinable() int {
	if e == nil || e.MaxCombinable <= 0 {
		return DefaultMaxCombinable
	}
	return e.MaxCombinable
}

// EvaluateSingle runs Engine.EvaluateSingle with default settings.
func EvaluateSingle(coupons []Coupon, pool []CartLineItem, ctx EvaluationContext) (SelectionResult, error) {
	return defaultEngine.EvaluateSingle(coupons, pool, ctx)
}

// EvaluateForGroup runs Engine.EvaluateForGroup with default settings.
func EvaluateForGroup(coupons []Coupon, pool []CartLineItem, ctx EvaluationContext) (SelectionResult, error) {
	return defaultEngine.EvaluateForGroup(coupons, pool, ctx)
}
