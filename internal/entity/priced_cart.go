package domain

import "github.com/shopspring/decimal"

// PricedLine is one resolved line of a priced cart.
type PricedLine struct {
	ProductID          int64
	Title              string
	Price              decimal.Decimal
	Quantity           int64
	Total              decimal.Decimal // round(price*quantity, 2)
	DiscountPercentage decimal.Decimal
	DiscountedTotal    decimal.Decimal // round(Total*(1-discount/100), 2)
}

// PricedCart is derived on every request and never stored.
type PricedCart struct {
	CartID          string
	UserID          *int64
	Lines           []PricedLine
	Total           decimal.Decimal
	DiscountedTotal decimal.Decimal
	TotalProducts   int
	TotalQuantity   int64
}

// Line returns the priced line for productID, if present.
func (p PricedCart) Line(productID int64) (PricedLine, bool) {
	for _, l := range p.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return PricedLine{}, false
}
