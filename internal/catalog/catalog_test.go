package catalog

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-saver/internal/coupon"
	"github.com/noah-isme/grocery-saver/internal/money"
	"github.com/noah-isme/grocery-saver/internal/resilience"
)

func sampleCoupons() []coupon.Coupon {
	minSpend := money.MustFromString("30.00")
	return []coupon.Coupon{
		{ID: "c1", StoreID: "s1", Code: "TEN", Type: coupon.PercentTotal, DiscountValue: decimal.NewFromInt(10), IsActive: true, MinPurchase: &minSpend},
		{ID: "c2", StoreID: "s2", Code: "DAIRY", Type: coupon.CategoryPercent, DiscountValue: decimal.NewFromInt(15), ApplicableCategories: []string{"dairy"}, IsActive: true},
		{ID: "c3", StoreID: "s1", Code: "FIVE", Type: coupon.Fixed, DiscountValue: decimal.RequireFromString("5.00"), IsActive: true, ValidDaysOfWeek: []time.Weekday{time.Saturday}},
	}
}

func TestSnapshotGroupsByStore(t *testing.T) {
	snap := NewSnapshot(sampleCoupons())

	got, err := snap.CouponsByStore(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c1", got[0].ID)
	require.Equal(t, "c3", got[1].ID)

	none, err := snap.CouponsByStore(context.Background(), "unknown")
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = snap.CouponsByStore(context.Background(), "")
	require.ErrorIs(t, err, ErrStoreRequired)
}

func TestSnapshotIsolatedFromCallers(t *testing.T) {
	src := sampleCoupons()
	snap := NewSnapshot(src)
	src[1].ApplicableCategories[0] = "frozen"

	got, err := snap.CouponsByStore(context.Background(), "s2")
	require.NoError(t, err)
	require.Equal(t, []string{"dairy"}, got[0].ApplicableCategories)

	got[0].ApplicableCategories[0] = "bakery"
	again, err := snap.CouponsByStore(context.Background(), "s2")
	require.NoError(t, err)
	require.Equal(t, []string{"dairy"}, again[0].ApplicableCategories)

	s1, err := snap.CouponsByStore(context.Background(), "s1")
	require.NoError(t, err)
	*s1[0].MinPurchase = 1
	s1Again, err := snap.CouponsByStore(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, money.MustFromString("30.00"), *s1Again[0].MinPurchase)
}

func TestCouponRowConversion(t *testing.T) {
	from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	row := couponRow{
		ID:                   "c1",
		StoreID:              "s1",
		Code:                 "WEEKEND",
		Description:          pgtype.Text{String: "weekend dairy", Valid: true},
		Type:                 string(coupon.CategoryPercent),
		DiscountValue:        pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true},
		MinPurchase:          pgtype.Numeric{Int: big.NewInt(2500), Exp: -2, Valid: true},
		ValidFrom:            pgtype.Timestamptz{Time: from, Valid: true},
		ValidDaysOfWeek:      []int16{0, 6},
		CanCombine:           true,
		ApplicableCategories: []string{"dairy"},
		IsActive:             true,
	}
	c, err := row.toCoupon()
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("12.5").Equal(c.DiscountValue))
	require.Equal(t, money.MustFromString("25.00"), *c.MinPurchase)
	require.Equal(t, from, *c.ValidFrom)
	require.Nil(t, c.ValidUntil)
	require.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, c.ValidDaysOfWeek)
	require.Equal(t, "weekend dairy", c.Description)
	require.NoError(t, coupon.ValidateCoupon(c))

	row.MinPurchase = pgtype.Numeric{}
	c, err = row.toCoupon()
	require.NoError(t, err)
	require.Nil(t, c.MinPurchase)

	row.DiscountValue = pgtype.Numeric{NaN: true, Valid: true}
	_, err = row.toCoupon()
	require.Error(t, err)
}

type failingQuerier struct{ err error }

func (f failingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, f.err
}

func TestStoreWrapsQueryError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := NewStore(failingQuerier{err: boom}).CouponsByStore(context.Background(), "s1")
	require.ErrorIs(t, err, boom)

	_, err = NewStore(failingQuerier{}).CouponsByStore(context.Background(), "")
	require.ErrorIs(t, err, ErrStoreRequired)
}

type countingCatalog struct {
	calls int
	inner Catalog
}

func (c *countingCatalog) CouponsByStore(ctx context.Context, storeID string) ([]coupon.Coupon, error) {
	c.calls++
	return c.inner.CouponsByStore(ctx, storeID)
}

func TestCachedReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := &countingCatalog{inner: NewSnapshot(sampleCoupons())}
	cached := Cached{Source: source, Cache: NewCache(client, time.Minute), Prefix: "coupons:"}

	first, err := cached.CouponsByStore(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, mr.Exists("coupons:s1"))

	second, err := cached.CouponsByStore(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)
	require.Len(t, second, len(first))
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, *first[0].MinPurchase, *second[0].MinPurchase)
	require.Equal(t, first[1].ValidDaysOfWeek, second[1].ValidDaysOfWeek)
	require.True(t, first[1].DiscountValue.Equal(second[1].DiscountValue))

	mr.FastForward(2 * time.Minute)
	_, err = cached.CouponsByStore(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)
}

func TestCachedFallsBackWhenRedisFails(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	var reported []error
	cached := Cached{
		Source:  NewSnapshot(sampleCoupons()),
		Cache:   NewCache(client, time.Minute),
		Prefix:  "coupons:",
		OnError: func(err error) { reported = append(reported, err) },
	}
	got, err := cached.CouponsByStore(context.Background(), "s2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, reported, 2)
}

func TestCacheDisabledWithoutTTL(t *testing.T) {
	source := &countingCatalog{inner: NewSnapshot(sampleCoupons())}
	cached := Cached{Source: source, Cache: NewCache(nil, 0)}
	for i := 0; i < 3; i++ {
		_, err := cached.CouponsByStore(context.Background(), "s1")
		require.NoError(t, err)
	}
	require.Equal(t, 3, source.calls)
}

func TestGuardedOpensAfterFailures(t *testing.T) {
	boom := errors.New("connection refused")
	breaker := resilience.NewBreaker(resilience.Settings{Name: "catalog-test", MinRequests: 2, OpenFor: time.Hour})
	source := &countingCatalog{inner: NewStore(failingQuerier{err: boom})}
	guarded := Guarded{Source: source, Breaker: breaker}

	for i := 0; i < 2; i++ {
		_, err := guarded.CouponsByStore(context.Background(), "s1")
		require.ErrorIs(t, err, boom)
	}
	_, err := guarded.CouponsByStore(context.Background(), "s1")
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 2, source.calls)

	_, err = guarded.CouponsByStore(context.Background(), "")
	require.ErrorIs(t, err, ErrStoreRequired)
}
