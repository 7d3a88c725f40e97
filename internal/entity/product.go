package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var maxDiscount = decimal.NewFromInt(100)

// Product is a read-only catalog record. Extra fields of the source file
// (rating, stock, images...) are kept as loaded.
type Product struct {
	ID                 int64           `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Category           string          `json:"category,omitempty"`
	Brand              string          `json:"brand,omitempty"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	Rating             float64         `json:"rating,omitempty"`
	Stock              int64           `json:"stock,omitempty"`
	Tags               []string        `json:"tags,omitempty"`
	Thumbnail          string          `json:"thumbnail,omitempty"`
	Images             []string        `json:"images,omitempty"`
}

func (p Product) Validate() error {
	if p.Price.IsNegative() {
		return fmt.Errorf("product %d: negative price %s", p.ID, p.Price)
	}
	if p.DiscountPercentage.IsNegative() || p.DiscountPercentage.GreaterThan(maxDiscount) {
		return fmt.Errorf("product %d: discountPercentage %s outside [0,100]", p.ID, p.DiscountPercentage)
	}
	return nil
}
