package orders

import "github.com/shopspring/decimal"

// Pricing holds the freight rule: orders whose total reaches
// FreeShippingThreshold ship free, all others pay FlatFreight.
type Pricing struct {
	FreeShippingThreshold decimal.Decimal
	FlatFreight           decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		FreeShippingThreshold: decimal.NewFromInt(99),
		FlatFreight:           decimal.NewFromInt(10),
	}
}

type Quote struct {
	Total    decimal.Decimal
	Discount decimal.Decimal
	Freight  decimal.Decimal
	Pay      decimal.Decimal
}

// Quote prices a set of lines. Discounts are not evaluated and stay zero.
func (p Pricing) Quote(lines []OrderLine) Quote {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	freight := p.FlatFreight
	if total.GreaterThanOrEqual(p.FreeShippingThreshold) {
		freight = decimal.Zero
	}
	discount := decimal.Zero
	return Quote{
		Total:    total,
		Discount: discount,
		Freight:  freight,
		Pay:      total.Add(freight).Sub(discount),
	}
}

// LoyaltyPoints is the number of points a completed order earns: one per
// whole currency unit paid.
func LoyaltyPoints(payAmount decimal.Decimal) int64 {
	if payAmount.IsNegative() {
		return 0
	}
	return payAmount.Floor().IntPart()
}
