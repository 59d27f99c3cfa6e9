package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-saver/internal/coupon"
	"github.com/noah-isme/grocery-saver/internal/money"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const listCouponsByStore = `SELECT id, store_id, code, description, type, discount_value, min_purchase,
       valid_from, valid_until, valid_days_of_week, exclude_sale_items, requires_loyalty_card,
       is_premium_only, can_combine, applicable_categories, is_active
FROM coupons
WHERE store_id = $1
ORDER BY id`

// Store reads coupons from postgres.
type Store struct {
	db querier
}

// NewStore wraps a pgx pool or connection.
func NewStore(db querier) *Store {
	return &Store{db: db}
}

type couponRow struct {
	ID                   string
	StoreID              string
	Code                 string
	Description          pgtype.Text
	Type                 string
	DiscountValue        pgtype.Numeric
	MinPurchase          pgtype.Numeric
	ValidFrom            pgtype.Timestamptz
	ValidUntil           pgtype.Timestamptz
	ValidDaysOfWeek      []int16
	ExcludeSaleItems     bool
	RequiresLoyaltyCard  bool
	IsPremiumOnly        bool
	CanCombine           bool
	ApplicableCategories []string
	IsActive             bool
}

// CouponsByStore loads every coupon of the store ordered by id.
func (s *Store) CouponsByStore(ctx context.Context, storeID string) ([]coupon.Coupon, error) {
	if storeID == "" {
		return nil, ErrStoreRequired
	}
	rows, err := s.db.Query(ctx, listCouponsByStore, storeID)
	if err != nil {
		return nil, fmt.Errorf("query coupons: %w", err)
	}
	defer rows.Close()

	var out []coupon.Coupon
	for rows.Next() {
		var r couponRow
		if err := rows.Scan(
			&r.ID, &r.StoreID, &r.Code, &r.Description, &r.Type, &r.DiscountValue, &r.MinPurchase,
			&r.ValidFrom, &r.ValidUntil, &r.ValidDaysOfWeek, &r.ExcludeSaleItems, &r.RequiresLoyaltyCard,
			&r.IsPremiumOnly, &r.CanCombine, &r.ApplicableCategories, &r.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		c, err := r.toCoupon()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupons: %w", err)
	}
	return out, nil
}

func (r couponRow) toCoupon() (coupon.Coupon, error) {
	value, err := numericToDecimal(r.DiscountValue)
	if err != nil {
		return coupon.Coupon{}, fmt.Errorf("coupon %q discount_value: %w", r.ID, err)
	}
	c := coupon.Coupon{
		ID:                   r.ID,
		StoreID:              r.StoreID,
		Code:                 r.Code,
		Description:          r.Description.String,
		Type:                 coupon.Type(r.Type),
		DiscountValue:        value,
		ExcludeSaleItems:     r.ExcludeSaleItems,
		RequiresLoyaltyCard:  r.RequiresLoyaltyCard,
		IsPremiumOnly:        r.IsPremiumOnly,
		CanCombine:           r.CanCombine,
		ApplicableCategories: r.ApplicableCategories,
		IsActive:             r.IsActive,
	}
	if r.MinPurchase.Valid {
		d, err := numericToDecimal(r.MinPurchase)
		if err != nil {
			return coupon.Coupon{}, fmt.Errorf("coupon %q min_purchase: %w", r.ID, err)
		}
		m, err := money.FromDecimal(d)
		if err != nil {
			return coupon.Coupon{}, fmt.Errorf("coupon %q min_purchase: %w", r.ID, err)
		}
		c.MinPurchase = &m
	}
	c.ValidFrom = timestamp(r.ValidFrom)
	c.ValidUntil = timestamp(r.ValidUntil)
	if len(r.ValidDaysOfWeek) > 0 {
		c.ValidDaysOfWeek = make([]time.Weekday, len(r.ValidDaysOfWeek))
		for i, d := range r.ValidDaysOfWeek {
			c.ValidDaysOfWeek[i] = time.Weekday(d)
		}
	}
	return c, nil
}

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, errors.New("null numeric")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, errors.New("non-finite numeric")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

func timestamp(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
