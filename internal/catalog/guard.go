package catalog

import (
	"context"

	"github.com/noah-isme/grocery-saver/internal/coupon"
	"github.com/noah-isme/grocery-saver/internal/resilience"
)

// Guarded fails fast with resilience.ErrOpenCircuit while the source keeps failing.
type Guarded struct {
	Source  Catalog
	Breaker *resilience.Breaker
}

// CouponsByStore delegates to the source through the breaker.
func (g Guarded) CouponsByStore(ctx context.Context, storeID string) ([]coupon.Coupon, error) {
	if storeID == "" {
		return nil, ErrStoreRequired
	}
	if g.Breaker == nil {
		return g.Source.CouponsByStore(ctx, storeID)
	}
	var out []coupon.Coupon
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Source.CouponsByStore(ctx, storeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
