// Package cart prices a multi-store cart: it groups lines by store, loads each
// store's coupon catalog and lets the coupon engine pick the discounts.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/grocery-saver/internal/catalog"
	"github.com/noah-isme/grocery-saver/internal/coupon"
	"github.com/noah-isme/grocery-saver/internal/money"
	"github.com/noah-isme/grocery-saver/internal/obs"
	"github.com/noah-isme/grocery-saver/internal/pricing"
)

// ErrCatalogUnavailable wraps failures to load a store's coupons.
var ErrCatalogUnavailable = errors.New("coupon catalog unavailable")

// Evaluation modes, used as a metric label.
const (
	ModeSingle = "single"
	ModeGroup  = "group"
)

var tracer = otel.Tracer("cart")

// StoreQuote is the priced result of one store group.
type StoreQuote struct {
	StoreID   string                 `json:"storeId"`
	Items     []coupon.CartLineItem  `json:"items"`
	Summary   pricing.Summary        `json:"summary"`
	Selection coupon.SelectionResult `json:"selection"`
}

// Quote is the priced cart.
type Quote struct {
	Stores                   []StoreQuote `json:"stores"`
	GrandTotal               money.Money  `json:"grandTotal"`
	GrandSavings             money.Money  `json:"grandSavings"`
	GrandTotalAfterDiscounts money.Money  `json:"grandTotalAfterDiscounts"`
}

// Config groups Aggregator dependencies.
type Config struct {
	Catalog     catalog.Catalog
	Engine      *coupon.Engine
	Logger      zerolog.Logger
	Concurrency int
	Timeout     time.Duration
}

// Aggregator prices carts against store coupon catalogs.
type Aggregator struct {
	catalog     catalog.Catalog
	engine      *coupon.Engine
	logger      zerolog.Logger
	concurrency int
	timeout     time.Duration
}

// NewAggregator constructs an Aggregator.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("cart: catalog is required")
	}
	engine := cfg.Engine
	if engine == nil {
		engine = coupon.NewEngine(coupon.DefaultMaxCombinable)
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}
	return &Aggregator{
		catalog:     cfg.Catalog,
		engine:      engine,
		logger:      cfg.Logger,
		concurrency: concurrency,
		timeout:     cfg.Timeout,
	}, nil
}

// Quote groups the cart by store, evaluates every group and totals the result.
// Premium users get the stacking optimizer. Any InvalidInput from the engine
// aborts the quote: it means the catalog or cart is corrupt.
func (a *Aggregator) Quote(ctx context.Context, items []Item, evalCtx coupon.EvaluationContext) (Quote, error) {
	ctx, span := tracer.Start(ctx, "cart.Quote")
	defer span.End()

	groups, err := GroupByStore(items)
	if err != nil {
		a.reportInvalid(ctx, "", err)
		span.SetStatus(codes.Error, "invalid input")
		return Quote{}, err
	}
	span.SetAttributes(attribute.Int("cart.stores", len(groups)), attribute.Int("cart.lines", len(items)))

	catalogs, err := a.loadCatalogs(ctx, groups)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog unavailable")
		return Quote{}, err
	}

	quote := Quote{Stores: make([]StoreQuote, 0, len(groups))}
	summaries := make([]pricing.Summary, 0, len(groups))
	for i, g := range groups {
		sq, err := a.evaluateGroup(ctx, g, catalogs[i], evalCtx, ModeGroup)
		if err != nil {
			span.SetStatus(codes.Error, "invalid input")
			return Quote{}, err
		}
		quote.Stores = append(quote.Stores, sq)
		summaries = append(summaries, sq.Summary)
	}

	grand := pricing.Combine(summaries...)
	quote.GrandTotal = grand.Subtotal
	quote.GrandSavings = grand.Discount
	quote.GrandTotalAfterDiscounts = grand.Total
	span.SetAttributes(attribute.Int64("cart.savings_cents", grand.Discount.Cents()))
	return quote, nil
}

// EvaluateStore loads one store's catalog and evaluates the pool against it.
// ModeSingle forces the single-best selector even for premium users.
func (a *Aggregator) EvaluateStore(ctx context.Context, storeID string, pool []coupon.CartLineItem, evalCtx coupon.EvaluationContext, mode string) (StoreQuote, error) {
	coupons, err := a.fetch(ctx, storeID)
	if err != nil {
		return StoreQuote{}, err
	}
	return a.evaluateGroup(ctx, StoreCartGroup{StoreID: storeID, Items: pool}, coupons, evalCtx, mode)
}

// Explain loads one store's catalog and reports each coupon's eligibility for the pool.
func (a *Aggregator) Explain(ctx context.Context, storeID string, pool []coupon.CartLineItem, evalCtx coupon.EvaluationContext) ([]coupon.Decision, error) {
	if err := coupon.ValidateItems(pool); err != nil {
		return nil, err
	}
	coupons, err := a.fetch(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if err := coupon.ValidateCoupons(coupons); err != nil {
		a.reportInvalid(ctx, storeID, err)
		return nil, err
	}
	return coupon.Explain(coupons, evalCtx, coupon.Subtotal(pool)), nil
}

// Coupons returns the store's catalog.
func (a *Aggregator) Coupons(ctx context.Context, storeID string) ([]coupon.Coupon, error) {
	return a.fetch(ctx, storeID)
}

func (a *Aggregator) loadCatalogs(ctx context.Context, groups []StoreCartGroup) ([][]coupon.Coupon, error) {
	out := make([][]coupon.Coupon, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, grp := range groups {
		g.Go(func() error {
			coupons, err := a.fetch(gctx, grp.StoreID)
			if err != nil {
				return err
			}
			out[i] = coupons
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Aggregator) fetch(ctx context.Context, storeID string) ([]coupon.Coupon, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	coupons, err := a.catalog.CouponsByStore(ctx, storeID)
	elapsed := obs.DurationMillis(time.Since(start))
	if err != nil {
		obs.ObserveCatalogFetch("error", elapsed)
		a.logger.Error().Err(err).Str("store_id", storeID).Msg("load coupon catalog")
		return nil, fmt.Errorf("%w: store %q: %w", ErrCatalogUnavailable, storeID, err)
	}
	obs.ObserveCatalogFetch("ok", elapsed)
	return coupons, nil
}

func (a *Aggregator) evaluateGroup(ctx context.Context, g StoreCartGroup, coupons []coupon.Coupon, evalCtx coupon.EvaluationContext, mode string) (StoreQuote, error) {
	_, span := tracer.Start(ctx, "coupon.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("store.id", g.StoreID),
		attribute.String("coupon.mode", mode),
		attribute.Int("coupon.catalog_size", len(coupons)),
		attribute.Bool("user.premium", evalCtx.IsPremiumUser),
	)

	var (
		res coupon.SelectionResult
		err error
	)
	if mode == ModeSingle {
		res, err = a.engine.EvaluateSingle(coupons, g.Items, evalCtx)
	} else {
		res, err = a.engine.EvaluateForGroup(coupons, g.Items, evalCtx)
	}
	if err != nil {
		a.reportInvalid(ctx, g.StoreID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid input")
		return StoreQuote{}, fmt.Errorf("store %q: %w", g.StoreID, err)
	}

	summary := pricing.Compute(coupon.Subtotal(g.Items), res.TotalSavings)
	span.SetAttributes(
		attribute.String("coupon.strategy", string(res.StrategyLabel)),
		attribute.Int64("coupon.savings_cents", res.TotalSavings.Cents()),
	)
	obs.ObserveEvaluation(mode, string(res.StrategyLabel), res.TotalSavings.Cents())
	a.logger.Debug().
		Str("store_id", g.StoreID).
		Str("strategy", string(res.StrategyLabel)).
		Int64("savings_cents", res.TotalSavings.Cents()).
		Int("coupons", len(coupons)).
		Msg("store group evaluated")

	return StoreQuote{
		StoreID:   g.StoreID,
		Items:     g.Items,
		Summary:   summary,
		Selection: res,
	}, nil
}

func (a *Aggregator) reportInvalid(ctx context.Context, storeID string, err error) {
	if !errors.Is(err, coupon.ErrInvalidInput) {
		return
	}
	obs.ObserveInvalidInput()
	evt := a.logger.Error().Ctx(ctx).Err(err).Str("store_id", storeID)
	var verr *coupon.ValidationError
	if errors.As(err, &verr) {
		evt = evt.Str("subject", verr.Subject).Str("field", verr.Field)
	}
	evt.Msg("coupon engine rejected input")
}
