package cart

import (
	"fmt"

	"github.com/noah-isme/grocery-saver/internal/coupon"
)

// Item is a cart line tagged with the store that sells it.
type Item struct {
	StoreID string `json:"storeId"`
	coupon.CartLineItem
}

// StoreCartGroup is the pool of cart lines bought from one store.
type StoreCartGroup struct {
	StoreID string
	Items   []coupon.CartLineItem
}

// GroupByStore splits cart items into per-store pools. Groups appear in the
// order their store is first seen; lines keep their cart order.
func GroupByStore(items []Item) ([]StoreCartGroup, error) {
	index := make(map[string]int)
	var groups []StoreCartGroup
	for i, it := range items {
		if it.StoreID == "" {
			return nil, &coupon.ValidationError{
				Subject: fmt.Sprintf("item[%d] %q", i, it.ProductID),
				Field:   "storeId",
				Reason:  "is required",
			}
		}
		pos, ok := index[it.StoreID]
		if !ok {
			pos = len(groups)
			index[it.StoreID] = pos
			groups = append(groups, StoreCartGroup{StoreID: it.StoreID})
		}
		groups[pos].Items = append(groups[pos].Items, it.CartLineItem)
	}
	return groups, nil
}
