// Package quote exposes coupon evaluation over HTTP.
package quote

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/grocery-saver/internal/cart"
	"github.com/noah-isme/grocery-saver/internal/catalog"
	"github.com/noah-isme/grocery-saver/internal/common"
	"github.com/noah-isme/grocery-saver/internal/coupon"
	"github.com/noah-isme/grocery-saver/internal/money"
)

// Handler exposes the quote endpoints.
type Handler struct {
	agg *cart.Aggregator
	now func() time.Time
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Aggregator *cart.Aggregator
	// Clock supplies the evaluation time when a request omits context.now.
	Clock func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Handler{agg: cfg.Aggregator, now: clock}
}

type linePayload struct {
	ProductID   string      `json:"productId" validate:"required,max=128"`
	ProductName string      `json:"productName" validate:"max=256"`
	Category    string      `json:"category" validate:"max=128"`
	UnitPrice   money.Money `json:"unitPrice" validate:"gte=0,lte=100000000"`
	Quantity    int         `json:"quantity" validate:"gte=1,lte=10000"`
	IsOnSale    bool        `json:"isOnSale"`
}

func (p linePayload) toLine() coupon.CartLineItem {
	return coupon.CartLineItem{
		ProductID:   strings.TrimSpace(p.ProductID),
		ProductName: p.ProductName,
		Category:    p.Category,
		UnitPrice:   p.UnitPrice,
		Quantity:    p.Quantity,
		IsOnSale:    p.IsOnSale,
	}
}

type cartLinePayload struct {
	StoreID     string      `json:"storeId" validate:"required,max=128"`
	ProductID   string      `json:"productId" validate:"required,max=128"`
	ProductName string      `json:"productName" validate:"max=256"`
	Category    string      `json:"category" validate:"max=128"`
	UnitPrice   money.Money `json:"unitPrice" validate:"gte=0,lte=100000000"`
	Quantity    int         `json:"quantity" validate:"gte=1,lte=10000"`
	IsOnSale    bool        `json:"isOnSale"`
}

func (p cartLinePayload) toItem() cart.Item {
	line := linePayload{
		ProductID:   p.ProductID,
		ProductName: p.ProductName,
		Category:    p.Category,
		UnitPrice:   p.UnitPrice,
		Quantity:    p.Quantity,
		IsOnSale:    p.IsOnSale,
	}
	return cart.Item{StoreID: strings.TrimSpace(p.StoreID), CartLineItem: line.toLine()}
}

type contextPayload struct {
	Now            *time.Time `json:"now"`
	IsPremiumUser  bool       `json:"isPremiumUser"`
	HasLoyaltyCard bool       `json:"hasLoyaltyCard"`
}

type evaluateRequest struct {
	Items   []linePayload  `json:"items" validate:"max=10000,dive"`
	Context contextPayload `json:"context"`
	Mode    string         `json:"mode" validate:"omitempty,oneof=single group"`
}

type eligibilityRequest struct {
	Items   []linePayload  `json:"items" validate:"max=10000,dive"`
	Context contextPayload `json:"context"`
}

type quoteRequest struct {
	Items   []cartLinePayload `json:"items" validate:"required,min=1,max=10000,dive"`
	Context contextPayload    `json:"context"`
}

func (h *Handler) evalContext(p contextPayload) coupon.EvaluationContext {
	now := h.now()
	if p.Now != nil {
		now = *p.Now
	}
	return coupon.EvaluationContext{Now: now, IsPremiumUser: p.IsPremiumUser, HasLoyaltyCard: p.HasLoyaltyCard}
}

func toPool(items []linePayload) []coupon.CartLineItem {
	pool := make([]coupon.CartLineItem, len(items))
	for i, it := range items {
		pool[i] = it.toLine()
	}
	return pool
}

// Coupons handles GET /api/v1/stores/{storeID}/coupons.
func (h *Handler) Coupons(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	coupons, err := h.agg.Coupons(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if coupons == nil {
		coupons = []coupon.Coupon{}
	}
	common.Data(w, http.StatusOK, coupons)
}

// Evaluate handles POST /api/v1/stores/{storeID}/evaluate.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	var req evaluateRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = cart.ModeGroup
	}
	sq, err := h.agg.EvaluateStore(r.Context(), chi.URLParam(r, "storeID"), toPool(req.Items), h.evalContext(req.Context), mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, sq)
}

// Eligibility handles POST /api/v1/stores/{storeID}/eligibility.
func (h *Handler) Eligibility(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	var req eligibilityRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	decisions, err := h.agg.Explain(r.Context(), chi.URLParam(r, "storeID"), toPool(req.Items), h.evalContext(req.Context))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if decisions == nil {
		decisions = []coupon.Decision{}
	}
	common.Data(w, http.StatusOK, decisions)
}

// Quote handles POST /api/v1/quotes.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	var req quoteRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	items := make([]cart.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = it.toItem()
	}
	q, err := h.agg.Quote(r.Context(), items, h.evalContext(req.Context))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, toAppError(err))
}

func toAppError(err error) error {
	if common.IsAppError(err) {
		return err
	}
	var verr *coupon.ValidationError
	switch {
	case errors.Is(err, catalog.ErrStoreRequired):
		return common.BadRequest("store id is required", err)
	case errors.As(err, &verr):
		return common.NewAppError(common.CodeInvalidInput, "invalid coupon or cart data", http.StatusUnprocessableEntity, err).
			WithDetails(map[string]string{"subject": verr.Subject, "field": verr.Field, "reason": verr.Reason})
	case errors.Is(err, coupon.ErrInvalidInput):
		return common.NewAppError(common.CodeInvalidInput, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, cart.ErrCatalogUnavailable):
		return common.NewAppError(common.CodeCatalogUnavailable, "coupon catalog unavailable", http.StatusBadGateway, err)
	}
	return err
}

// Register mounts the quote routes on r, typically the /api/v1 subrouter.
func (h *Handler) Register(r chi.Router) {
	r.Route("/stores/{storeID}", func(s chi.Router) {
		s.Get("/coupons", h.Coupons)
		s.Post("/evaluate", h.Evaluate)
		s.Post("/eligibility", h.Eligibility)
	})
	r.Post("/quotes", h.Quote)
}
