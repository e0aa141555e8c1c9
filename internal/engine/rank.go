package engine

import (
	"sort"
	"time"
)

// Ranked pairs a coupon with the discount it yields for one cart.
type Ranked struct {
	Coupon   Coupon         `json:"-"`
	Discount int64          `json:"discount"`
	Result   DiscountResult `json:"details"`
}

// Rank computes each coupon's discount against the cart, drops the ones that
// yield nothing, and orders the rest by discount descending. The sort is
// stable: equal discounts keep the input collection's relative order.
func Rank(coupons []Coupon, cart Cart, now time.Time) []Ranked {
	out := make([]Ranked, 0, len(coupons))
	for _, c := range coupons {
		res := Calculate(c, cart, now)
		if res.Discount <= 0 {
			continue
		}
		out = append(out, Ranked{Coupon: c, Discount: res.Discount, Result: res})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Discount > out[j].Discount
	})
	return out
}
