package engine

import (
	"fmt"
	"time"
)

// ItemDiscount is the per-line breakdown of a product-wise discount. Line
// is the index of the discounted cart line; it keeps annotations on the
// right line when a product appears on several lines.
type ItemDiscount struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	Discount  int64 `json:"itemDiscount"`
	Line      int   `json:"-"`
}

// FreeItem records the free units a BXGY application grants for one get
// entry. InCart is false when the get product is absent from the cart; the
// engine still reports the entitlement but contributes zero discount rather
// than fabricating a cart line.
type FreeItem struct {
	ProductID      int64 `json:"productId"`
	TargetQuantity int64 `json:"targetQuantity"`
	FreeQuantity   int64 `json:"freeQuantity"`
	Discount       int64 `json:"itemDiscount"`
	InCart         bool  `json:"inCart"`
	Line           int   `json:"-"`
}

// DiscountResult is the computed outcome of a coupon against a cart.
// Discount 0 with a Reason means the coupon did not apply. All amounts are
// integral minor units; percentage division truncates sub-unit remainders
// toward zero, and any further rounding is a presentation concern of the
// caller.
type DiscountResult struct {
	Discount     int64          `json:"discount"`
	Reason       string         `json:"reason,omitempty"`
	Kind         string         `json:"discountType,omitempty"`
	CartTotal    int64          `json:"cartTotal,omitempty"`
	Items        []ItemDiscount `json:"itemDiscounts,omitempty"`
	FreeItems    []FreeItem     `json:"freeItems,omitempty"`
	Applications int64          `json:"applications,omitempty"`
}

// Calculate computes the discount a coupon yields for a cart at the provided
// instant. It re-derives applicability via Evaluate; an inapplicable coupon
// yields Discount 0 and the evaluator's reason.
func Calculate(c Coupon, cart Cart, now time.Time) DiscountResult {
	ev := Evaluate(c, cart, now)
	if !ev.Applicable {
		return DiscountResult{Reason: ev.Reason, CartTotal: ev.CartTotal}
	}
	switch c.Type {
	case TypeCartWise:
		return calculateCartWise(c, ev)
	case TypeProductWise:
		return calculateProductWise(c, ev)
	case TypeBxGy:
		return calculateBxGy(c, cart, ev)
	default:
		return DiscountResult{Reason: fmt.Sprintf("unknown coupon type %q", c.Type), CartTotal: ev.CartTotal}
	}
}

func calculateCartWise(c Coupon, ev Evaluation) DiscountResult {
	discount := ev.CartTotal * c.DiscountValue / 100
	if c.MaxDiscount != nil && discount > *c.MaxDiscount {
		discount = *c.MaxDiscount
	}
	if discount > ev.CartTotal {
		discount = ev.CartTotal
	}
	if discount < 0 {
		discount = 0
	}
	return DiscountResult{
		Discount:  discount,
		Kind:      string(KindPercentage),
		CartTotal: ev.CartTotal,
	}
}

func calculateProductWise(c Coupon, ev Evaluation) DiscountResult {
	items := make([]ItemDiscount, 0, len(ev.Matched))
	var total int64
	for _, it := range ev.Matched {
		var discount int64
		switch c.DiscountKind {
		case KindFixedAmount:
			discount = c.DiscountValue * it.Quantity
		default:
			discount = it.Subtotal() * c.DiscountValue / 100
		}
		// The cap is applied independently per matched line, not once on
		// the aggregate.
		if c.MaxDiscount != nil && discount > *c.MaxDiscount {
			discount = *c.MaxDiscount
		}
		if sub := it.Subtotal(); discount > sub {
			discount = sub
		}
		if discount < 0 {
			discount = 0
		}
		items = append(items, ItemDiscount{ProductID: it.ProductID, Quantity: it.Quantity, Discount: discount, Line: it.Line})
		total += discount
	}
	kind := c.DiscountKind
	if kind == "" {
		kind = KindPercentage
	}
	return DiscountResult{
		Discount:  total,
		Kind:      string(kind),
		CartTotal: ev.CartTotal,
		Items:     items,
	}
}

func calculateBxGy(c Coupon, cart Cart, ev Evaluation) DiscountResult {
	free := make([]FreeItem, 0, len(c.GetItems))
	var total int64
	for _, entry := range c.GetItems {
		target := entry.Quantity * ev.Applications
		idx, ok := cart.FindLine(entry.ProductID)
		if !ok {
			free = append(free, FreeItem{ProductID: entry.ProductID, TargetQuantity: target, FreeQuantity: target})
			continue
		}
		line := cart.Items[idx]
		actual := target
		if line.Quantity < actual {
			actual = line.Quantity
		}
		discount := actual * line.Price
		free = append(free, FreeItem{
			ProductID:      entry.ProductID,
			TargetQuantity: target,
			FreeQuantity:   actual,
			Discount:       discount,
			InCart:         true,
			Line:           idx,
		})
		total += discount
	}
	return DiscountResult{
		Discount:     total,
		Kind:         KindFreeItems,
		CartTotal:    ev.CartTotal,
		FreeItems:    free,
		Applications: ev.Applications,
	}
}
