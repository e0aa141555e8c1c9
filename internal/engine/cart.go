package engine

// CartItem is a single cart line. Price is the unit price in minor
// currency units.
type CartItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	Price     int64 `json:"price"`
}

// Subtotal returns the line total, never negative.
func (it CartItem) Subtotal() int64 {
	if it.Quantity <= 0 || it.Price <= 0 {
		return 0
	}
	return it.Quantity * it.Price
}

// Cart is an ephemeral, per-request snapshot of a shopping cart. The engine
// never retains or mutates it.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Total sums price×quantity over all lines, skipping malformed ones.
func (c Cart) Total() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.Subtotal()
	}
	return total
}

// Quantities aggregates cart quantity per product id.
func (c Cart) Quantities() map[int64]int64 {
	out := make(map[int64]int64, len(c.Items))
	for _, it := range c.Items {
		if it.Quantity > 0 {
			out[it.ProductID] += it.Quantity
		}
	}
	return out
}

// FindLine returns the index of the first line holding the given product.
func (c Cart) FindLine(productID int64) (int, bool) {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i, true
		}
	}
	return 0, false
}
