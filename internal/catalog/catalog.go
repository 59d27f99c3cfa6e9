// Package catalog provides read-only access to the coupons each store offers.
package catalog

import (
	"context"
	"errors"
	"slices"

	"github.com/noah-isme/grocery-saver/internal/coupon"
)

// ErrStoreRequired is returned when a lookup is made without a store id.
var ErrStoreRequired = errors.New("catalog: store id is required")

// Catalog returns the coupon definitions of a store in a stable order.
// Implementations never expose shared mutable state: callers own the slice.
type Catalog interface {
	CouponsByStore(ctx context.Context, storeID string) ([]coupon.Coupon, error)
}

// Snapshot is an immutable in-memory catalog.
type Snapshot struct {
	byStore map[string][]coupon.Coupon
}

// NewSnapshot copies the given coupons into a snapshot keyed by store id. The
// relative order of each store's coupons is kept.
func NewSnapshot(coupons []coupon.Coupon) *Snapshot {
	s := &Snapshot{byStore: make(map[string][]coupon.Coupon)}
	for _, c := range coupons {
		s.byStore[c.StoreID] = append(s.byStore[c.StoreID], cloneCoupon(c))
	}
	return s
}

// CouponsByStore returns a copy of the store's coupons. Unknown stores yield an
// empty catalog.
func (s *Snapshot) CouponsByStore(_ context.Context, storeID string) ([]coupon.Coupon, error) {
	if storeID == "" {
		return nil, ErrStoreRequired
	}
	if s == nil {
		return nil, nil
	}
	src := s.byStore[storeID]
	out := make([]coupon.Coupon, len(src))
	for i, c := range src {
		out[i] = cloneCoupon(c)
	}
	return out, nil
}

func cloneCoupon(c coupon.Coupon) coupon.Coupon {
	c.ValidDaysOfWeek = slices.Clone(c.ValidDaysOfWeek)
	c.ApplicableCategories = slices.Clone(c.ApplicableCategories)
	if c.MinPurchase != nil {
		v := *c.MinPurchase
		c.MinPurchase = &v
	}
	if c.ValidFrom != nil {
		v := *c.ValidFrom
		c.ValidFrom = &v
	}
	if c.ValidUntil != nil {
		v := *c.ValidUntil
		c.ValidUntil = &v
	}
	return c
}
