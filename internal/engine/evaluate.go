package engine

import (
	"fmt"
	"time"
)

// MatchedItem is a cart line in a coupon's scope. Line is the index into
// the cart's item slice; duplicate product lines match independently and
// annotations land on the exact line, never just the first line sharing a
// product.
type MatchedItem struct {
	CartItem
	Line int `json:"-"`
}

// Evaluation describes whether a coupon applies to a cart. Ineligibility is
// data, never an error: Applicable false plus a human-readable Reason.
// Variant-specific context rides along for the calculator.
type Evaluation struct {
	Applicable   bool            `json:"applicable"`
	Reason       string          `json:"reason,omitempty"`
	CartTotal    int64           `json:"cartTotal"`
	Matched      []MatchedItem   `json:"matchedItems,omitempty"`
	MatchedTotal int64           `json:"matchedTotal,omitempty"`
	Applications int64           `json:"applications,omitempty"`
	Quantities   map[int64]int64 `json:"-"`
}

// IsRedeemable checks the coupon's own activity, expiry and usage predicate
// at the provided instant, independent of any cart.
func IsRedeemable(c Coupon, now time.Time) (bool, string) {
	if !c.Active {
		return false, "coupon is inactive"
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false, fmt.Sprintf("coupon expired at %s", c.ExpiresAt.Format(time.RFC3339))
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false, fmt.Sprintf("usage limit reached (%d of %d)", c.UsedCount, *c.UsageLimit)
	}
	return true, ""
}

// Evaluate decides applicability of a coupon against a cart snapshot at the
// provided instant. The clock is an explicit input so repeated calls with
// identical arguments yield identical results.
func Evaluate(c Coupon, cart Cart, now time.Time) Evaluation {
	if ok, reason := IsRedeemable(c, now); !ok {
		return Evaluation{Reason: reason}
	}
	total := cart.Total()
	if len(cart.Items) == 0 || total <= 0 {
		return Evaluation{Reason: "cart is empty"}
	}
	if c.MinCartValue > 0 && total < c.MinCartValue {
		return Evaluation{
			Reason:    fmt.Sprintf("cart total %d below minimum %d", total, c.MinCartValue),
			CartTotal: total,
		}
	}
	switch c.Type {
	case TypeCartWise:
		return Evaluation{Applicable: true, CartTotal: total}
	case TypeProductWise:
		return evaluateProductWise(c, cart, total)
	case TypeBxGy:
		return evaluateBxGy(c, cart, total)
	default:
		return Evaluation{Reason: fmt.Sprintf("unknown coupon type %q", c.Type), CartTotal: total}
	}
}

func evaluateProductWise(c Coupon, cart Cart, total int64) Evaluation {
	if len(c.Products) == 0 {
		return Evaluation{Reason: "no applicable products configured", CartTotal: total}
	}
	scope := make(map[int64]struct{}, len(c.Products))
	for _, id := range c.Products {
		scope[id] = struct{}{}
	}
	var matched []MatchedItem
	var matchedTotal int64
	for i, it := range cart.Items {
		if _, ok := scope[it.ProductID]; ok && it.Subtotal() > 0 {
			matched = append(matched, MatchedItem{CartItem: it, Line: i})
			matchedTotal += it.Subtotal()
		}
	}
	if len(matched) == 0 {
		return Evaluation{Reason: "cart has none of the applicable products", CartTotal: total}
	}
	return Evaluation{Applicable: true, CartTotal: total, Matched: matched, MatchedTotal: matchedTotal}
}

func evaluateBxGy(c Coupon, cart Cart, total int64) Evaluation {
	if len(c.BuyItems) == 0 {
		return Evaluation{Reason: "no buy requirements configured", CartTotal: total}
	}
	quantities := cart.Quantities()
	var applications int64 = -1
	for _, req := range c.BuyItems {
		if req.Quantity <= 0 {
			continue
		}
		possible := quantities[req.ProductID] / req.Quantity
		if applications < 0 || possible < applications {
			applications = possible
		}
	}
	if applications < 0 {
		applications = 0
	}
	if c.RepetitionLimit > 0 && applications > c.RepetitionLimit {
		applications = c.RepetitionLimit
	}
	if applications == 0 {
		return Evaluation{Reason: "buy requirements not satisfied", CartTotal: total, Quantities: quantities}
	}
	return Evaluation{Applicable: true, CartTotal: total, Applications: applications, Quantities: quantities}
}
