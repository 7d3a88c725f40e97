package domain

import (
	"math"
	"sort"

	"github.com/go-faster/errors"
)

var (
	ErrInvalidQuantity = errors.New("invalid quantity, must be a positive integer")
	ErrItemNotInCart   = errors.New("product not found in cart")

	// ErrQuantityTooLarge means the cart would hold more than MaxCartQuantity
	// units in total.
	ErrQuantityTooLarge = errors.New("quantity too large")
)

// MaxCartQuantity caps the sum of all line quantities in one cart, so every
// line and the cart total fit an int64.
const MaxCartQuantity int64 = math.MaxInt64

// LineItem is one product/quantity pairing in a cart. Quantity is always > 0;
// a line that would drop to zero is removed instead.
type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// Cart is the per-user collection of line items, keyed by product id.
// encoding/json writes the int64 keys as decimal strings, which is the
// persisted layout.
type Cart struct {
	ID    string             `json:"cart_id"`
	Items map[int64]LineItem `json:"items"`
}

func NewCart(id string) Cart {
	return Cart{ID: id, Items: map[int64]LineItem{}}
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (c Cart) Clone() Cart {
	out := Cart{ID: c.ID, Items: make(map[int64]LineItem, len(c.Items))}
	for k, v := range c.Items {
		out.Items[k] = v
	}
	return out
}

// Add accumulates qty onto the line for productID, creating it if absent.
func (c *Cart) Add(productID, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if c.Items == nil {
		c.Items = map[int64]LineItem{}
	}
	if qty > MaxCartQuantity-c.TotalQuantity() {
		return ErrQuantityTooLarge
	}
	line := c.Items[productID]
	line.ProductID = productID
	line.Quantity += qty
	c.Items[productID] = line
	return nil
}

// SetQuantity replaces the quantity of an existing line. It never removes.
func (c *Cart) SetQuantity(productID, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	line, ok := c.Items[productID]
	if !ok {
		return ErrItemNotInCart
	}
	if qty > MaxCartQuantity-(c.TotalQuantity()-line.Quantity) {
		return ErrQuantityTooLarge
	}
	line.Quantity = qty
	c.Items[productID] = line
	return nil
}

func (c *Cart) Remove(productID int64) error {
	if _, ok := c.Items[productID]; !ok {
		return ErrItemNotInCart
	}
	delete(c.Items, productID)
	return nil
}

// Quantity reports the quantity held for productID (0 when absent).
func (c Cart) Quantity(productID int64) int64 {
	return c.Items[productID].Quantity
}

// TotalQuantity sums the line quantities, saturating at MaxCartQuantity.
func (c Cart) TotalQuantity() int64 {
	var n int64
	for _, line := range c.Items {
		n = AddQuantity(n, line.Quantity)
	}
	return n
}

// AddQuantity returns a+b for non-negative quantities, saturating at
// MaxCartQuantity instead of wrapping.
func AddQuantity(a, b int64) int64 {
	if b > MaxCartQuantity-a {
		return MaxCartQuantity
	}
	return a + b
}

// ProductIDs returns the line keys in ascending order.
func (c Cart) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.Items))
	for id := range c.Items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
