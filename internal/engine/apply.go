package engine

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationError is returned when a coupon is applied to a cart it yields
// no discount for. It carries the evaluator's reason.
type ApplicationError struct {
	Reason string
}

func (e *ApplicationError) Error() string {
	return "cannot apply coupon: " + e.Reason
}

// AppliedItem mirrors a cart line on the annotated copy. Matched lines
// accumulate TotalDiscount and a recomputed DiscountedPrice; BXGY matches
// additionally carry FreeQuantity.
type AppliedItem struct {
	ProductID       int64 `json:"productId"`
	Quantity        int64 `json:"quantity"`
	Price           int64 `json:"price"`
	TotalDiscount   int64 `json:"totalDiscount"`
	DiscountedPrice int64 `json:"discountedPrice"`
	FreeQuantity    int64 `json:"freeQuantity,omitempty"`
}

// AppliedCoupon stamps the annotated cart with the rule that produced it.
type AppliedCoupon struct {
	CouponID uuid.UUID `json:"couponId"`
	Code     string    `json:"code"`
	Type     Type      `json:"type"`
	Discount int64     `json:"discountValue"`
}

// AppliedCart is a deep, independently-owned copy of the input cart with the
// discount folded in. FinalPrice is TotalPrice minus TotalDiscount and is
// deliberately not floored at zero; callers that need a non-negative total
// own that guard.
type AppliedCart struct {
	Items         []AppliedItem `json:"items"`
	TotalPrice    int64         `json:"totalPrice"`
	TotalDiscount int64         `json:"totalDiscount"`
	FinalPrice    int64         `json:"finalPrice"`
	Coupon        AppliedCoupon `json:"appliedCoupon"`
}

// Apply computes the coupon's discount and folds it into an annotated copy
// of the cart. The input cart and coupon are never mutated, and usage
// counters are untouched; recording usage after a successful application is
// the caller's job. A zero discount fails with *ApplicationError.
func Apply(c Coupon, cart Cart, now time.Time) (AppliedCart, DiscountResult, error) {
	res := Calculate(c, cart, now)
	if res.Discount <= 0 {
		reason := res.Reason
		if reason == "" {
			reason = "computed discount is zero"
		}
		return AppliedCart{}, res, &ApplicationError{Reason: reason}
	}

	items := make([]AppliedItem, len(cart.Items))
	for i, it := range cart.Items {
		items[i] = AppliedItem{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			Price:           it.Price,
			DiscountedPrice: it.Subtotal(),
		}
	}

	switch c.Type {
	case TypeProductWise:
		for _, d := range res.Items {
			annotate(items, d.Line, d.Discount, 0)
		}
	case TypeBxGy:
		for _, f := range res.FreeItems {
			if !f.InCart {
				continue
			}
			annotate(items, f.Line, f.Discount, f.FreeQuantity)
		}
	}

	total := cart.Total()
	return AppliedCart{
		Items:         items,
		TotalPrice:    total,
		TotalDiscount: res.Discount,
		FinalPrice:    total - res.Discount,
		Coupon: AppliedCoupon{
			CouponID: c.ID,
			Code:     c.Code,
			Type:     c.Type,
			Discount: res.Discount,
		},
	}, res, nil
}

func annotate(items []AppliedItem, line int, discount, freeQty int64) {
	if line < 0 || line >= len(items) {
		return
	}
	items[line].TotalDiscount += discount
	items[line].DiscountedPrice = items[line].Price*items[line].Quantity - items[line].TotalDiscount
	items[line].FreeQuantity += freeQty
}
