package coupon

import (
	"errors"
	"slices"

	"github.com/noah-isme/grocery-saver/internal/money"
)

var (
	// ErrInactive is returned for coupons switched off in the catalog.
	ErrInactive = errors.New("coupon inactive")
	// ErrNotYetValid is returned before the coupon's validity window opens.
	ErrNotYetValid = errors.New("coupon not yet valid")
	// ErrExpired is returned after the coupon's validity window closes.
	ErrExpired = errors.New("coupon expired")
	// ErrWrongDay is returned when the coupon is restricted to other weekdays.
	ErrWrongDay = errors.New("coupon not valid today")
	// ErrPremiumOnly is returned when a standard user meets a premium coupon.
	ErrPremiumOnly = errors.New("coupon requires premium")
	// ErrLoyaltyRequired is returned when the user holds no loyalty card.
	ErrLoyaltyRequired = errors.New("coupon requires loyalty card")
	// ErrMinimumSpendUnmet indicates the group subtotal is below the coupon minimum.
	ErrMinimumSpendUnmet = errors.New("coupon minimum purchase not met")
)

// Reason codes returned by Explain.
const (
	ReasonEligible          = "eligible"
	ReasonInactive          = "inactive"
	ReasonNotYetValid       = "not_yet_valid"
	ReasonExpired           = "expired"
	ReasonWrongDay          = "wrong_day"
	ReasonPremiumOnly       = "premium_only"
	ReasonLoyaltyRequired   = "loyalty_required"
	ReasonMinimumSpendUnmet = "minimum_spend_unmet"
)

var reasonCodes = map[error]string{
	ErrInactive:          ReasonInactive,
	ErrNotYetValid:       ReasonNotYetValid,
	ErrExpired:           ReasonExpired,
	ErrWrongDay:          ReasonWrongDay,
	ErrPremiumOnly:       ReasonPremiumOnly,
	ErrLoyaltyRequired:   ReasonLoyaltyRequired,
	ErrMinimumSpendUnmet: ReasonMinimumSpendUnmet,
}

// Check applies the eligibility rules in order and returns the first failure.
func Check(c Coupon, ctx EvaluationContext, groupSubtotal money.Money) error {
	if !c.IsActive {
		return ErrInactive
	}
	if c.ValidFrom != nil && ctx.Now.Before(*c.ValidFrom) {
		return ErrNotYetValid
	}
	if c.ValidUntil != nil && ctx.Now.After(*c.ValidUntil) {
		return ErrExpired
	}
	if len(c.ValidDaysOfWeek) > 0 && !slices.Contains(c.ValidDaysOfWeek, ctx.Now.Weekday()) {
		return ErrWrongDay
	}
	if c.IsPremiumOnly && !ctx.IsPremiumUser {
		return ErrPremiumOnly
	}
	if c.RequiresLoyaltyCard && !ctx.HasLoyaltyCard {
		return ErrLoyaltyRequired
	}
	if c.MinPurchase != nil && groupSubtotal < *c.MinPurchase {
		return ErrMinimumSpendUnmet
	}
	return nil
}

// Filter returns the coupons that pass Check, preserving input order.
func Filter(coupons []Coupon, ctx EvaluationContext, groupSubtotal money.Money) []Coupon {
	out := make([]Coupon, 0, len(coupons))
	for _, c := range coupons {
		if Check(c, ctx, groupSubtotal) == nil {
			out = append(out, c)
		}
	}
	return out
}

// Decision is the eligibility verdict for one coupon.
type Decision struct {
	CouponID string `json:"couponId"`
	Code     string `json:"code"`
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
}

// Explain reports the eligibility verdict of every coupon in catalog order.
func Explain(coupons []Coupon, ctx EvaluationContext, groupSubtotal money.Money) []Decision {
	out := make([]Decision, 0, len(coupons))
	for _, c := range coupons {
		d := Decision{CouponID: c.ID, Code: c.Code, Eligible: true, Reason: ReasonEligible}
		if err := Check(c, ctx, groupSubtotal); err != nil {
			d.Eligible = false
			d.Reason = ReasonCode(err)
		}
		out = append(out, d)
	}
	return out
}

// ReasonCode maps an eligibility error to its stable reason code.
func ReasonCode(err error) string {
	if err == nil {
		return ReasonEligible
	}
	for sentinel, code := range reasonCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "unknown"
}
