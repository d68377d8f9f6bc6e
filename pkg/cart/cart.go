package cart

import (
	"encoding/json"
	"fmt"
	"math"
)

// Cart is an ordered list of items with unique IDs.
//
// Cart values are snapshots: every operation returns a new slice and leaves
// the receiver untouched, so a snapshot handed to a subscriber or the writer
// never changes underneath it.
type Cart []Item

// Index returns the position of the item with id, or -1.
func (c Cart) Index(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the item with id.
func (c Cart) Find(id string) (Item, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return Item{}, false
}

// Clone returns a copy that shares no backing array with c.
// A nil or empty cart clones to an empty, non-nil cart.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Add appends p with quantity 1, or increments the existing line with the same ID.
func (c Cart) Add(p Product) (Cart, bool) {
	if c.Index(p.ID) >= 0 {
		return c.Increment(p.ID)
	}
	out := make(Cart, len(c), len(c)+1)
	copy(out, c)
	return append(out, Item{
		ID:       p.ID,
		Title:    p.Title,
		ImageURL: p.ImageURL,
		Price:    p.Price,
		Quantity: 1,
	}), true
}

// Increment raises the quantity of the line with id by one.
// An unknown id, or a line already at math.MaxInt, leaves the cart unchanged.
func (c Cart) Increment(id string) (Cart, bool) {
	i := c.Index(id)
	if i < 0 || c[i].Quantity == math.MaxInt {
		return c, false
	}
	out := c.Clone()
	out[i].Quantity++
	return out, true
}

// Decrement lowers the quantity of the line with id by one, removing the
// line when it reaches zero. An unknown id leaves the cart unchanged.
func (c Cart) Decrement(id string) (Cart, bool) {
	i := c.Index(id)
	if i < 0 {
		return c, false
	}
	if c[i].Quantity <= 1 {
		out := make(Cart, 0, len(c)-1)
		out = append(out, c[:i]...)
		return append(out, c[i+1:]...), true
	}
	out := c.Clone()
	out[i].Quantity--
	return out, true
}

// Lines returns the number of distinct products.
func (c Cart) Lines() int {
	return len(c)
}

// Units returns the total quantity across all lines.
func (c Cart) Units() int {
	n := 0
	for _, it := range c {
		n += it.Quantity
	}
	return n
}

// Equal reports whether two carts hold the same items in the same order.
func (c Cart) Equal(o Cart) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if !c[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Validate checks that quantities are at least 1 and IDs are unique.
func (c Cart) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, it := range c {
		if it.Quantity < 1 {
			return fmt.Errorf("cart: item %q has quantity %d", it.ID, it.Quantity)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("cart: duplicate item %q", it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// normalize drops lines with quantity below 1 and keeps the first line for
// each repeated ID. It reports how many lines were dropped.
func (c Cart) normalize() (Cart, int) {
	out := make(Cart, 0, len(c))
	seen := make(map[string]struct{}, len(c))
	for _, it := range c {
		if it.Quantity < 1 {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out, len(c) - len(out)
}

// Encode serializes the cart as a JSON array. An empty cart encodes as [].
func Encode(c Cart) (string, error) {
	if c == nil {
		c = Cart{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a persisted cart and normalizes it.
// JSON null decodes to an empty cart.
func Decode(s string) (Cart, error) {
	c, _, err := decode(s)
	return c, err
}

func decode(s string) (Cart, int, error) {
	var c Cart
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, 0, err
	}
	out, dropped := c.normalize()
	return out, dropped, nil
}
