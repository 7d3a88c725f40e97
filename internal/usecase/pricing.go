package usecase

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	domain "github.com/aq2208/gcart-api/internal/entity"
)

const pricePlaces = 2

// PriceCart computes the priced view of cart against catalog. It is pure:
// the same cart and catalog snapshot always give the same view, lines in
// ascending product id order.
//
// Each line is rounded to cents twice (item total, then discounted item
// total) before it is summed; aggregates are exact sums of the rounded
// values. Line arithmetic is float64 with round-to-cents on the exact binary
// result, so 2.10 at 35% is 1.37 and 2.675 is 2.67. Lines whose product is
// no longer in the catalog are left out of the view and every aggregate and
// reported in Missing.
func PriceCart(cart domain.Cart, catalog Catalog) (view domain.PricedCart, missing []int64) {
	view = domain.PricedCart{
		CartID:          cart.ID,
		Lines:           make([]domain.PricedLine, 0, len(cart.Items)),
		Total:           decimal.Zero,
		DiscountedTotal: decimal.Zero,
	}

	for _, id := range cart.ProductIDs() {
		item := cart.Items[id]
		p, ok := catalog.Product(id)
		if !ok {
			missing = append(missing, id)
			continue
		}

		price, _ := p.Price.Float64()
		discount, _ := p.DiscountPercentage.Float64()
		total, totalF := roundCents(price * float64(item.Quantity))
		discounted, _ := roundCents(totalF * (1 - discount/100))

		view.Lines = append(view.Lines, domain.PricedLine{
			ProductID:          p.ID,
			Title:              p.Title,
			Price:              p.Price,
			Quantity:           item.Quantity,
			Total:              total,
			DiscountPercentage: p.DiscountPercentage,
			DiscountedTotal:    discounted,
		})
		view.TotalQuantity = domain.AddQuantity(view.TotalQuantity, item.Quantity)
		view.Total = view.Total.Add(total)
		view.DiscountedTotal = view.DiscountedTotal.Add(discounted)
	}

	view.TotalProducts = len(view.Lines)
	view.Total = view.Total.RoundBank(pricePlaces)
	view.DiscountedTotal = view.DiscountedTotal.RoundBank(pricePlaces)
	return view, missing
}

// roundCents rounds x to 2 places, ties on the exact binary value going to
// even. It returns the decimal and the float64 nearest to it, which is what
// the next stage multiplies.
func roundCents(x float64) (decimal.Decimal, float64) {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return decimal.Zero, 0
	}
	s := strconv.FormatFloat(x, 'f', pricePlaces, 64)
	f, _ := strconv.ParseFloat(s, 64)
	return decimal.RequireFromString(s), f
}
