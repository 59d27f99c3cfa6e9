package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// couponNamespace derives stable coupon ids from store and code so reseeding upserts.
var couponNamespace = uuid.MustParse("5a0b7c0e-2f8d-4d4e-9a53-6b1f0c3e8d21")

type seedCoupon struct {
	StoreID     string
	Code        string
	Description string
	Type        string
	Value       string
	MinPurchase string
	Days        []int16
	Categories  []string
	ExcludeSale bool
	Loyalty     bool
	Premium     bool
	Combine     bool
	ValidFor    time.Duration
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer conn.Close(context.Background())

	if err := conn.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	coupons := []seedCoupon{
		{StoreID: "fresh-mart", Code: "FRESH10", Description: "10% off your basket", Type: "percent_total", Value: "10", MinPurchase: "25.00", Combine: true, ValidFor: 30 * 24 * time.Hour},
		{StoreID: "fresh-mart", Code: "DAIRY15", Description: "15% off dairy", Type: "category_percent", Value: "15", Categories: []string{"dairy"}, Combine: true},
		{StoreID: "fresh-mart", Code: "TOPITEM25", Description: "25% off your priciest item", Type: "percent_single_item", Value: "25", ExcludeSale: true, Premium: true, Combine: true},
		{StoreID: "fresh-mart", Code: "WEEKEND5", Description: "$5 off on weekends", Type: "fixed", Value: "5.00", MinPurchase: "40.00", Days: []int16{0, 6}},
		{StoreID: "corner-grocer", Code: "LOYAL3", Description: "$3 off for loyalty members", Type: "fixed", Value: "3.00", Loyalty: true, Combine: true},
		{StoreID: "corner-grocer", Code: "PRODUCE20", Description: "20% off produce", Type: "category_percent", Value: "20", Categories: []string{"produce", "fruit"}, Combine: true},
		{StoreID: "corner-grocer", Code: "VIP12", Description: "12% off for premium members", Type: "percent_total", Value: "12", Premium: true},
	}

	log.Println("Seeding coupons...")
	now := time.Now().UTC()
	for _, c := range coupons {
		if err := upsertCoupon(ctx, conn, c, now); err != nil {
			log.Printf("Failed to seed coupon %s/%s: %v", c.StoreID, c.Code, err)
		}
	}

	log.Println("Seeding completed successfully!")
}

func upsertCoupon(ctx context.Context, conn *pgx.Conn, c seedCoupon, now time.Time) error {
	value, err := numeric(c.Value)
	if err != nil {
		return err
	}
	var minPurchase pgtype.Numeric
	if c.MinPurchase != "" {
		if minPurchase, err = numeric(c.MinPurchase); err != nil {
			return err
		}
	}
	var validUntil pgtype.Timestamptz
	if c.ValidFor > 0 {
		validUntil = pgtype.Timestamptz{Time: now.Add(c.ValidFor), Valid: true}
	}
	days := c.Days
	if days == nil {
		days = []int16{}
	}
	categories := c.Categories
	if categories == nil {
		categories = []string{}
	}

	id := uuid.NewSHA1(couponNamespace, []byte(c.StoreID+"/"+c.Code)).String()
	_, err = conn.Exec(ctx, `
		INSERT INTO coupons (id, store_id, code, description, type, discount_value, min_purchase,
			valid_from, valid_until, valid_days_of_week, exclude_sale_items, requires_loyalty_card,
			is_premium_only, can_combine, applicable_categories, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			discount_value = EXCLUDED.discount_value,
			min_purchase = EXCLUDED.min_purchase,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			valid_days_of_week = EXCLUDED.valid_days_of_week,
			exclude_sale_items = EXCLUDED.exclude_sale_items,
			requires_loyalty_card = EXCLUDED.requires_loyalty_card,
			is_premium_only = EXCLUDED.is_premium_only,
			can_combine = EXCLUDED.can_combine,
			applicable_categories = EXCLUDED.applicable_categories,
			updated_at = NOW();
	`, id, c.StoreID, c.Code, c.Description, c.Type, value, minPurchase,
		pgtype.Timestamptz{Time: now, Valid: true}, validUntil, days, c.ExcludeSale, c.Loyalty,
		c.Premium, c.Combine, categories)
	return err
}

func numeric(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}, nil
}
