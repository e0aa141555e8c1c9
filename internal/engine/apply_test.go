package engine

import (
	"errors"
	"testing"
)

func TestApplyCartWise(t *testing.T) {
	maxDiscount := int64(500)
	c := cartWiseCoupon(10, 1000, &maxDiscount)
	cart := Cart{Items: []CartItem{{ProductID: 1, Quantity: 2, Price: 1000}}}

	applied, res, err := Apply(c, cart, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied.TotalPrice != 2000 || applied.TotalDiscount != 200 || applied.FinalPrice != 1800 {
		t.Fatalf("unexpected totals %+v", applied)
	}
	if res.Discount != 200 {
		t.Fatalf("expected discount result 200, got %d", res.Discount)
	}
	if applied.Coupon.Code != "SAVE" || applied.Coupon.Type != TypeCartWise || applied.Coupon.Discount != 200 {
		t.Fatalf("unexpected coupon stamp %+v", applied.Coupon)
	}
}

func TestApplyInapplicableFails(t *testing.T) {
	c := cartWiseCoupon(10, 1000, nil)
	cart := Cart{Items: []CartItem{{ProductID: 1, Quantity: 1, Price: 500}}}

	_, res, err := Apply(c, cart, testNow)
	if err == nil {
		t.Fatal("expected application error")
	}
	var appErr *ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *ApplicationError, got %T", err)
	}
	if appErr.Reason != "cart total 500 below minimum 1000" {
		t.Fatalf("unexpected reason %q", appErr.Reason)
	}
	if res.Discount != 0 {
		t.Fatalf("expected zero discount, got %d", res.Discount)
	}
}

func TestApplyAnnotatesProductWiseLines(t *testing.T) {
	c := Coupon{
		Code:          "PROD20",
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
	applied, _, err := Apply(c, cart, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	matched := applied.Items[0]
	if matched.TotalDiscount != 300 || matched.DiscountedPrice != 1200 {
		t.Fatalf("unexpected matched line annotation %+v", matched)
	}
	other := applied.Items[1]
	if other.TotalDiscount != 0 || other.DiscountedPrice != 10 {
		t.Fatalf("unexpected unmatched line annotation %+v", other)
	}
}

func TestApplyAnnotatesBxGyFreeQuantity(t *testing.T) {
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
	applied, _, err := Apply(c, cart, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	free := applied.Items[1]
	if free.FreeQuantity != 2 || free.TotalDiscount != 200 || free.DiscountedPrice != 0 {
		t.Fatalf("unexpected free line annotation %+v", free)
	}
	if applied.TotalDiscount != 200 || applied.FinalPrice != applied.TotalPrice-200 {
		t.Fatalf("unexpected totals %+v", applied)
	}
}

func TestApplyProductWiseDuplicateProductLines(t *testing.T) {
	c := Coupon{
		Code:          "HALF",
		Type:          TypeProductWise,
		DiscountKind:  KindPercentage,
		DiscountValue: 50,
		Products:      []int64{101},
		Active:        true,
	}
	cart := Cart{Items: []CartItem{
		{ProductID: 101, Quantity: 1, Price: 100},
		{ProductID: 101, Quantity: 1, Price: 400},
	}}
	applied, res, err := Apply(c, cart, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Discount != 250 {
		t.Fatalf("expected total discount 250, got %d", res.Discount)
	}
	// each line carries its own share, not the first line of the product
	first := applied.Items[0]
	if first.TotalDiscount != 50 || first.DiscountedPrice != 50 {
		t.Fatalf("unexpected first line annotation %+v", first)
	}
	second := applied.Items[1]
	if second.TotalDiscount != 200 || second.DiscountedPrice != 200 {
		t.Fatalf("unexpected second line annotation %+v", second)
	}
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	c := Coupon{
		Code:          "PROD20",
		Type:          TypeProductWise,
		DiscountKind:  KindPercentage,
		DiscountValue: 20,
		Products:      []int64{101},
		Active:        true,
	}
	cart := Cart{Items: []CartItem{{ProductID: 101, Quantity: 3, Price: 500}}}
	applied, _, err := Apply(c, cart, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	applied.Items[0].Quantity = 99
	applied.Items[0].Price = 1
	if cart.Items[0].Quantity != 3 || cart.Items[0].Price != 500 {
		t.Fatalf("input cart mutated: %+v", cart.Items[0])
	}
}

func TestApplyNeverTouchesUsage(t *testing.T) {
	limit := int32(10)
	c := cartWiseCoupon(10, 0, nil)
	c.UsageLimit = &limit
	c.UsedCount = 3
	cart := Cart{Items: []CartItem{{ProductID: 1, Quantity: 1, Price: 1000}}}
	if _, _, err := Apply(c, cart, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.UsedCount != 3 {
		t.Fatalf("usage counter mutated to %d", c.UsedCount)
	}
}
