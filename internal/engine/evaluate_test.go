package engine

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func cartWiseCoupon(value, minCart int64, maxDiscount *int64) Coupon {
	return Coupon{
		Code:          "SAVE",
		Type:          TypeCartWise,
		DiscountKind:  KindPercentage,
		DiscountValue: value,
		MinCartValue:  minCart,
		MaxDiscount:   maxDiscount,
		Active:        true,
	}
}

func TestIsRedeemable(t *testing.T) {
	c := cartWiseCoupon(10, 0, nil)
	if ok, _ := IsRedeemable(c, testNow); !ok {
		t.Fatal("expected active coupon to be redeemable")
	}

	c.Active = false
	if ok, reason := IsRedeemable(c, testNow); ok || reason == "" {
		t.Fatalf("expected inactive coupon rejection, got ok=%v reason=%q", ok, reason)
	}

	c.Active = true
	expired := testNow.Add(-time.Hour)
	c.ExpiresAt = &expired
	if ok, _ := IsRedeemable(c, testNow); ok {
		t.Fatal("expected expired coupon rejection")
	}

	// now equal to the expiration instant is still valid
	c.ExpiresAt = &testNow
	if ok, _ := IsRedeemable(c, testNow); !ok {
		t.Fatal("expected coupon expiring exactly now to be redeemable")
	}

	c.ExpiresAt = nil
	limit := int32(5)
	c.UsageLimit = &limit
	c.UsedCount = 5
	if ok, reason := IsRedeemable(c, testNow); ok || reason == "" {
		t.Fatalf("expected exhausted coupon rejection, got ok=%v", ok)
	}
	c.UsedCount = 4
	if ok, _ := IsRedeemable(c, testNow); !ok {
		t.Fatal("expected coupon under usage limit to be redeemable")
	}
}

func TestEvaluateMinCartValue(t *testing.T) {
	c := cartWiseCoupon(10, 1000, nil)
	cart := Cart{Items: []CartItem{{ProductID: 1, Quantity: 1, Price: 500}}}
	ev := Evaluate(c, cart, testNow)
	if ev.Applicable {
		t.Fatal("expected below-minimum cart to be inapplicable")
	}
	if ev.Reason != "cart total 500 below minimum 1000" {
		t.Fatalf("unexpected reason %q", ev.Reason)
	}
}

func TestEvaluateEmptyCart(t *testing.T) {
	ev := Evaluate(cartWiseCoupon(10, 0, nil), Cart{}, testNow)
	if ev.Applicable || ev.Reason != "cart is empty" {
		t.Fatalf("expected empty cart rejection, got %+v", ev)
	}
}

func TestEvaluateProductWise(t *testing.T) {
	c := Coupon{
		Code:          "PROD",
		Type:          TypeProductWise,
		DiscountKind:  KindPercentage,
		DiscountValue: 20,
		Products:      []int64{101},
		Active:        true,
	}
	cart := Cart{Items: []CartItem{
		{ProductID: 101, Quantity: 3, Price: 500},
		{ProductID: 999, Quantity: 1, Price: 10},
	}}
	ev := Evaluate(c, cart, testNow)
	if !ev.Applicable {
		t.Fatalf("expected applicable, got reason %q", ev.Reason)
	}
	if len(ev.Matched) != 1 || ev.Matched[0].ProductID != 101 {
		t.Fatalf("unexpected matched items %+v", ev.Matched)
	}
	if ev.MatchedTotal != 1500 {
		t.Fatalf("expected matched subtotal 1500, got %d", ev.MatchedTotal)
	}

	// no scope configured vs scope absent from cart produce distinct reasons
	unscoped := c
	unscoped.Products = nil
	if ev := Evaluate(unscoped, cart, testNow); ev.Reason != "no applicable products configured" {
		t.Fatalf("unexpected reason %q", ev.Reason)
	}
	missing := c
	missing.Products = []int64{777}
	if ev := Evaluate(missing, cart, testNow); ev.Reason != "cart has none of the applicable products" {
		t.Fatalf("unexpected reason %q", ev.Reason)
	}
}

func TestEvaluateBxGyApplications(t *testing.T) {
	c := Coupon{
		Code:            "B2G1",
		Type:            TypeBxGy,
		BuyItems:        []QuantityRequirement{{ProductID: 101, Quantity: 2}},
		GetItems:        []QuantityRequirement{{ProductID: 201, Quantity: 1}},
		RepetitionLimit: 3,
		Active:          true,
	}
	cart := Cart{Items: []CartItem{
		{ProductID: 101, Quantity: 7, Price: 50},
		{ProductID: 201, Quantity: 2, Price: 100},
	}}
	ev := Evaluate(c, cart, testNow)
	if !ev.Applicable {
		t.Fatalf("expected applicable, got reason %q", ev.Reason)
	}
	if ev.Applications != 3 {
		t.Fatalf("expected 3 applications (floor(7/2) capped at 3), got %d", ev.Applications)
	}

	// repetition limit caps possible applications
	c.RepetitionLimit = 2
	if ev := Evaluate(c, cart, testNow); ev.Applications != 2 {
		t.Fatalf("expected repetition cap 2, got %d", ev.Applications)
	}

	// a buy requirement absent from the cart zeroes applications
	c.BuyItems = append(c.BuyItems, QuantityRequirement{ProductID: 555, Quantity: 1})
	ev = Evaluate(c, cart, testNow)
	if ev.Applicable || ev.Reason != "buy requirements not satisfied" {
		t.Fatalf("expected unsatisfied buy requirements, got %+v", ev)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	c := cartWiseCoupon(10, 1000, nil)
	cart := Cart{Items: []CartItem{{ProductID: 1, Quantity: 2, Price: 1000}}}
	first := Evaluate(c, cart, testNow)
	for i := 0; i < 5; i++ {
		if got := Evaluate(c, cart, testNow); got.Applicable != first.Applicable || got.Reason != first.Reason || got.CartTotal != first.CartTotal {
			t.Fatalf("evaluation not deterministic: %+v vs %+v", got, first)
		}
	}
}
