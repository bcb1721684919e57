package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTaxExemptionThreshold is the post-discount subtotal at or below which no tax is charged.
var DefaultTaxExemptionThreshold = decimal.RequireFromString("9.90")

// Line is a priced cart line.
type Line struct {
	Product  Product
	Quantity int
}

// PricedLine carries the resolved unit price of a line.
type PricedLine struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice Money
	Quantity  int
	Total     Money
	ImageURLs []string
}

// Breakdown aggregates the computed order amounts at full precision.
type Breakdown struct {
	Lines          []PricedLine
	Subtotal       Money
	DiscountAmount Money
	ShippingFee    Money
	TaxAmount      Money
	GrandTotal     Money
}

// Calculator computes order breakdowns. The zero value applies DefaultTaxExemptionThreshold
// and prices sales against the wall clock.
type Calculator struct {
	TaxExemptionThreshold *Money
	Now                   func() time.Time
}

func (c Calculator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Calculator) threshold() Money {
	if c.TaxExemptionThreshold != nil {
		return *c.TaxExemptionThreshold
	}
	return DefaultTaxExemptionThreshold
}

// ComputeBreakdown prices lines and applies the discount, tax and shipping in that order.
// Lines with a non-positive quantity are ignored. Amounts are not rounded.
func (c Calculator) ComputeBreakdown(lines []Line, shippingFee Money, taxRate decimal.Decimal, discount Money) Breakdown {
	now := c.now()
	out := Breakdown{
		Lines:       make([]PricedLine, 0, len(lines)),
		Subtotal:    Zero,
		ShippingFee: shippingFee,
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		unit := EffectivePrice(l.Product, now)
		total := unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
		out.Lines = append(out.Lines, PricedLine{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			UnitPrice: unit,
			Quantity:  l.Quantity,
			Total:     total,
			ImageURLs: l.Product.ImageURLs,
		})
		out.Subtotal = out.Subtotal.Add(total)
	}

	if discount.IsNegative() {
		discount = Zero
	}
	out.DiscountAmount = discount
	post := Max(Zero, out.Subtotal.Sub(discount))

	out.TaxAmount = Zero
	if taxRate.IsPositive() && post.GreaterThan(c.threshold()) {
		out.TaxAmount = post.Mul(taxRate)
	}
	out.GrandTotal = Max(Zero, post.Add(shippingFee).Add(out.TaxAmount))
	return out
}

// ComputeBreakdown uses a zero-value Calculator.
func ComputeBreakdown(lines []Line, shippingFee Money, taxRate decimal.Decimal, discount Money) Breakdown {
	return Calculator{}.ComputeBreakdown(lines, shippingFee, taxRate, discount)
}

// PostDiscountSubtotal returns max(0, subtotal - discount).
func (b Breakdown) PostDiscountSubtotal() Money {
	return Max(Zero, b.Subtotal.Sub(b.DiscountAmount))
}

// Display returns a copy of the breakdown rounded to cents.
func (b Breakdown) Display() Breakdown {
	lines := make([]PricedLine, len(b.Lines))
	for i, l := range b.Lines {
		l.UnitPrice = Round(l.UnitPrice)
		l.Total = Round(l.Total)
		lines[i] = l
	}
	return Breakdown{
		Lines:          lines,
		Subtotal:       Round(b.Subtotal),
		DiscountAmount: Round(b.DiscountAmount),
		ShippingFee:    Round(b.ShippingFee),
		TaxAmount:      Round(b.TaxAmount),
		GrandTotal:     Round(b.GrandTotal),
	}
}
