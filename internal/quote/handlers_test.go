package quote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-saver/internal/cart"
	"github.com/noah-isme/grocery-saver/internal/catalog"
	"github.com/noah-isme/grocery-saver/internal/coupon"
)

var fixedNow = time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)

func testCoupons() []coupon.Coupon {
	vip := coupon.Coupon{ID: "vip", StoreID: "super", Code: "VIP", Type: coupon.Fixed, DiscountValue: decimal.RequireFromString("2.00"), IsActive: true, IsPremiumOnly: true}
	return []coupon.Coupon{
		{ID: "t10", StoreID: "super", Code: "TEN", Type: coupon.PercentTotal, DiscountValue: decimal.NewFromInt(10), IsActive: true, CanCombine: true},
		{ID: "s25", StoreID: "super", Code: "ITEM25", Type: coupon.PercentSingleItem, DiscountValue: decimal.NewFromInt(25), IsActive: true, CanCombine: true},
		vip,
	}
}

func newTestRouter(t *testing.T, cat catalog.Catalog) http.Handler {
	t.Helper()
	agg, err := cart.NewAggregator(cart.Config{Catalog: cat, Logger: zerolog.Nop(), Timeout: time.Second})
	require.NoError(t, err)
	h := NewHandler(HandlerConfig{Aggregator: agg, Clock: func() time.Time { return fixedNow }})
	r := chi.NewRouter()
	r.Route("/api/v1", h.Register)
	return r
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

const twoItems = `[
	{"productId":"A","productName":"Coffee","category":"pantry","unitPrice":30.00,"quantity":1},
	{"productId":"B","productName":"Tea","category":"pantry","unitPrice":"10.00","quantity":1}
]`

func TestCouponsListsStoreCatalog(t *testing.T) {
	router := newTestRouter(t, catalog.NewSnapshot(testCoupons()))

	rec, env := do(t, router, http.MethodGet, "/api/v1/stores/super/coupons", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var coupons []coupon.Coupon
	require.NoError(t, json.Unmarshal(env.Data, &coupons))
	require.Len(t, coupons, 3)

	rec, env = do(t, router, http.MethodGet, "/api/v1/stores/nowhere/coupons", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, string(env.Data))
}

func TestEvaluatePremiumStacks(t *testing.T) {
	router := newTestRouter(t, catalog.NewSnapshot(testCoupons()))
	body := `{"items":` + twoItems + `,"context":{"isPremiumUser":true}}`

	rec, env := do(t, router, http.MethodPost, "/api/v1/stores/super/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sq struct {
		Summary   map[string]json.Number `json:"summary"`
		Selection struct {
			Strategy     string      `json:"strategy"`
			TotalSavings json.Number `json:"totalSavings"`
		} `json:"selection"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sq))
	require.Equal(t, string(coupon.StrategyStacked), sq.Selection.Strategy)
	require.Equal(t, "11.50", sq.Selection.TotalSavings.String())
	require.Equal(t, "40.00", sq.Summary["subtotal"].String())
	require.Equal(t, "28.50", sq.Summary["total"].String())
}

func TestEvaluateSingleModeAndStandardUser(t *testing.T) {
	router := newTestRouter(t, catalog.NewSnapshot(testCoupons()))

	for _, body := range []string{
		`{"items":` + twoItems + `,"context":{"isPremiumUser":true},"mode":"single"}`,
		`{"items":` + twoItems + `}`,
	} {
		rec, env := do(t, router, http.MethodPost, "/api/v1/stores/super/evaluate", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sq struct {
			Selection struct {
				Strategy string `json:"strategy"`
			} `json:"selection"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &sq))
		require.Equal(t, string(coupon.StrategySingle), sq.Selection.Strategy)
	}
}

func TestEvaluateRejectsBadPayloads(t *testing.T) {
	router := newTestRouter(t, catalog.NewSnapshot(testCoupons()))

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed", `{"items":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown field", `{"items":[],"coupons":[]}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"zero quantity", `{"items":[{"productId":"A","unitPrice":1,"quantity":0}]}`, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"missing product", `{"items":[{"unitPrice":1,"quantity":1}]}`, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"bad mode", `{"items":[],"mode":"greedy"}`, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, router, http.MethodPost, "/api/v1/stores/super/evaluate", tc.body)
			require.Equal(t, tc.status, rec.Code)
			require.NotNil(t, env.Error)
			require.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestEvaluateZeroQuantityDetails(t *testing.T) {
	router := newTestRouter(t, catalog.NewSnapshot(testCoupons()))
	_, env := do(t, router, http.MethodPost, "/api/v1/stores/super/evaluate",
		`{"items":[{"productId":"A","unitPrice":1,"quantity":1},{"productId":"B","unitPrice":1,"quantity":0}]}`)
	require.NotNil(t, env.Error)
	var details map[string]string
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	require.Contains(t, details, "items[1].quantity")
}

func TestEvaluateInvalidCatalogIs422(t *testing.T) {
	broken := coupon.Coupon{ID: "bad", StoreID: "super", Code: "BAD", Type: coupon.PercentTotal, DiscountValue: decimal.NewFromInt(150), IsActive: true}
	router := newTestRouter(t, catalog.NewSnapshot([]coupon.Coupon{broken}))

	rec, env := do(t, router, http.MethodPost, "/api/v1/stores/super/evaluate", `{"items":`+twoItems+`}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "INVALID_INPUT", env.Error.Code)
	var details map[string]string
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	require.Equal(t, "discountValue", details["field"])
}

type brokenCatalog struct{}

func (brokenCatalog) CouponsByStore(context.Context, string) ([]coupon.Coupon, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestCatalogFailureIs502(t *testing.T) {
	router := newTestRouter(t, brokenCatalog{})

	rec, env := do(t, router, http.MethodPost, "/api/v1/stores/super/evaluate", `{"items":`+twoItems+`}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "CATALOG_UNAVAILABLE", env.Error.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestEligibilityExplainsEachCoupon(t *testing.T) {
	router := newTestRouter(t, catalog.NewSnapshot(testCoupons()))

	rec, env := do(t, router, http.MethodPost, "/api/v1/stores/super/eligibility", `{"items":`+twoItems+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var decisions []coupon.Decision
	require.NoError(t, json.Unmarshal(env.Data, &decisions))
	require.Len(t, decisions, 3)
	byID := map[string]coupon.Decision{}
	for _, d := range decisions {
		byID[d.CouponID] = d
	}
	require.True(t, byID["t10"].Eligible)
	require.False(t, byID["vip"].Eligible)
	require.Equal(t, coupon.ReasonPremiumOnly, byID["vip"].Reason)
}

func TestQuoteAcrossStores(t *testing.T) {
	coupons := append(testCoupons(), coupon.Coupon{
		ID: "corner5", StoreID: "corner", Code: "FIVE", Type: coupon.Fixed, DiscountValue: decimal.RequireFromString("5.00"), IsActive: true,
	})
	router := newTestRouter(t, catalog.NewSnapshot(coupons))
	body := `{"items":[
		{"storeId":"super","productId":"A","unitPrice":30,"quantity":1},
		{"storeId":"corner","productId":"C","unitPrice":"3.00","quantity":1},
		{"storeId":"super","productId":"B","unitPrice":10,"quantity":1}
	],"context":{"now":"2026-03-11T10:00:00Z"}}`

	rec, env := do(t, router, http.MethodPost, "/api/v1/quotes", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var q struct {
		Stores []struct {
			StoreID string `json:"storeId"`
		} `json:"stores"`
		GrandTotal               json.Number `json:"grandTotal"`
		GrandSavings             json.Number `json:"grandSavings"`
		GrandTotalAfterDiscounts json.Number `json:"grandTotalAfterDiscounts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &q))
	require.Len(t, q.Stores, 2)
	require.Equal(t, "super", q.Stores[0].StoreID)
	require.Equal(t, "corner", q.Stores[1].StoreID)
	require.Equal(t, "43.00", q.GrandTotal.String())
	require.Equal(t, "10.50", q.GrandSavings.String())
	require.Equal(t, "32.50", q.GrandTotalAfterDiscounts.String())
}

func TestQuoteRequiresItems(t *testing.T) {
	router := newTestRouter(t, catalog.NewSnapshot(nil))
	rec, env := do(t, router, http.MethodPost, "/api/v1/quotes", `{"items":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestHandlerWithoutAggregator(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	rc := chi.NewRouteContext()
	rc.URLParams.Add("storeID", "super")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/super/coupons", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	rec := httptest.NewRecorder()
	h.Coupons(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
