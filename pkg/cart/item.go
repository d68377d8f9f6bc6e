package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Price is an exact decimal unit price.
// The cart never does arithmetic on it; it is carried and persisted as-is,
// encoded as a bare JSON number.
type Price struct {
	decimal.Decimal
}

// NewPrice returns a Price from a float.
func NewPrice(f float64) Price {
	return Price{decimal.NewFromFloat(f)}
}

// ParsePrice parses a decimal string such as "19.90".
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, err
	}
	return Price{d}, nil
}

// Equal reports whether two prices have the same value.
func (p Price) Equal(o Price) bool {
	return p.Decimal.Equal(o.Decimal)
}

// MarshalJSON encodes the price as a JSON number rather than a quoted string.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (p *Price) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Price{}
		return nil
	}
	return p.Decimal.UnmarshalJSON(data)
}

// Product describes a catalog product being added to the cart.
// It is an Item without a quantity.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	Price    Price  `json:"price"`
}

// Item is one product line in the cart. Quantity is always at least 1.
type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	Price    Price  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Product returns the item's descriptor without its quantity.
func (i Item) Product() Product {
	return Product{
		ID:       i.ID,
		Title:    i.Title,
		ImageURL: i.ImageURL,
		Price:    i.Price,
	}
}

// Equal reports whether two items carry the same fields.
func (i Item) Equal(o Item) bool {
	return i.ID == o.ID &&
		i.Title == o.Title &&
		i.ImageURL == o.ImageURL &&
		i.Quantity == o.Quantity &&
		i.Price.Equal(o.Price)
}

// itemJSON is the wire shape used for decoding. Older clients sent the image
// as imageUrl; both spellings are accepted and image_url wins.
type itemJSON struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	ImageURL      string `json:"image_url"`
	ImageURLCamel string `json:"imageUrl"`
	Price         Price  `json:"price"`
	Quantity      int    `json:"quantity"`
}

func (j itemJSON) imageURL() string {
	if j.ImageURL != "" {
		return j.ImageURL
	}
	return j.ImageURLCamel
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Item) UnmarshalJSON(data []byte) error {
	var j itemJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*i = Item{
		ID:       j.ID,
		Title:    j.Title,
		ImageURL: j.imageURL(),
		Price:    j.Price,
		Quantity: j.Quantity,
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Product) UnmarshalJSON(data []byte) error {
	var j itemJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*p = Product{
		ID:       j.ID,
		Title:    j.Title,
		ImageURL: j.imageURL(),
		Price:    j.Price,
	}
	return nil
}
