package engine

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the closed set of coupon rule families. Evaluation and
// calculation dispatch exhaustively on this set; adding a variant means
// extending every switch.
type Type string

const (
	// TypeCartWise discounts the entire cart subtotal.
	TypeCartWise Type = "cart_wise"
	// TypeProductWise discounts only cart lines whose product is in scope.
	TypeProductWise Type = "product_wise"
	// TypeBxGy grants free units of a get set unlocked by a buy set.
	TypeBxGy Type = "bxgy"
)

// Valid reports whether t is a member of the closed variant set.
func (t Type) Valid() bool {
	switch t {
	case TypeCartWise, TypeProductWise, TypeBxGy:
		return true
	}
	return false
}

// DiscountKind distinguishes percentage discounts from fixed amounts.
type DiscountKind string

const (
	KindPercentage  DiscountKind = "percentage"
	KindFixedAmount DiscountKind = "fixed_amount"
)

// KindFreeItems labels BXGY results; it is an output label only, never a
// stored coupon kind.
const KindFreeItems = "free_items"

// QuantityRequirement pairs a product with the quantity a BXGY rule buys
// or grants per application.
type QuantityRequirement struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// Coupon captures the runtime constraints of a promotional rule. The engine
// receives it already validated against the per-variant invariants (scope
// lists present or absent as the type requires); missing optional lists are
// treated as empty rather than rejected. The engine reads UsedCount as a
// snapshot and never mutates it; incrementing usage after a successful
// application belongs to the caller.
type Coupon struct {
	ID              uuid.UUID
	Code            string
	Type            Type
	DiscountKind    DiscountKind
	DiscountValue   int64
	MinCartValue    int64
	MaxDiscount     *int64
	Products        []int64
	BuyItems        []QuantityRequirement
	GetItems        []QuantityRequirement
	RepetitionLimit int64
	ExpiresAt       *time.Time
	Active          bool
	UsageLimit      *int32
	UsedCount       int32
}
