package engine

import "testing"

func TestRankOrdersByDiscountAndDropsZero(t *testing.T) {
	cart := Cart{Items: []CartItem{{ProductID: 1, Quantity: 2, Price: 1000}}}
	coupons := []Coupon{
		func() Coupon { c := cartWiseCoupon(5, 0, nil); c.Code = "FIVE"; return c }(),   // 100
		func() Coupon { c := cartWiseCoupon(10, 0, nil); c.Code = "TEN"; return c }(),   // 200
		func() Coupon { c := cartWiseCoupon(10, 5000, nil); c.Code = "HIGH"; return c }(), // below minimum → 0
	}
	ranked := Rank(coupons, cart, testNow)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked coupons, got %d", len(ranked))
	}
	if ranked[0].Coupon.Code != "TEN" || ranked[0].Discount != 200 {
		t.Fatalf("unexpected first entry %+v", ranked[0])
	}
	if ranked[1].Coupon.Code != "FIVE" || ranked[1].Discount != 100 {
		t.Fatalf("unexpected second entry %+v", ranked[1])
	}
}

func TestRankStableOnTies(t *testing.T) {
	cart := Cart{Items: []CartItem{{ProductID: 1, Quantity: 1, Price: 1000}}}
	coupons := make([]Coupon, 0, 4)
	for _, code := range []string{"A", "B", "C", "D"} {
		c := cartWiseCoupon(10, 0, nil)
		c.Code = code
		coupons = append(coupons, c)
	}
	ranked := Rank(coupons, cart, testNow)
	if len(ranked) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(ranked))
	}
	for i, code := range []string{"A", "B", "C", "D"} {
		if ranked[i].Coupon.Code != code {
			t.Fatalf("tie order not preserved: position %d is %q", i, ranked[i].Coupon.Code)
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	cart := Cart{Items: []CartItem{{ProductID: 1, Quantity: 1, Price: 1000}}}
	if ranked := Rank(nil, cart, testNow); len(ranked) != 0 {
		t.Fatalf("expected empty result, got %+v", ranked)
	}
}
