package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var taxRate = decimal.RequireFromString("0.13")

func fixedCalc() Calculator {
	now := *at("2024-06-15T12:00:00Z")
	return Calculator{Now: func() time.Time { return now }}
}

func line(price string, qty int) Line {
	return Line{Product: Product{ID: uuid.New(), Name: "Serum", Price: money(price)}, Quantity: qty}
}

func TestComputeBreakdownNoDiscount(t *testing.T) {
	b := fixedCalc().ComputeBreakdown([]Line{line("20.00", 2), line("10.00", 1)}, money("15.00"), taxRate, Zero)
	d := b.Display()
	require.Equal(t, "50.00", Format(d.Subtotal))
	require.Equal(t, "0.00", Format(d.DiscountAmount))
	require.Equal(t, "6.50", Format(d.TaxAmount))
	require.Equal(t, "71.50", Format(d.GrandTotal))
}

func TestComputeBreakdownPercentageDiscount(t *testing.T) {
	b := fixedCalc().ComputeBreakdown([]Line{line("50.00", 1)}, money("15.00"), taxRate, money("10.00"))
	require.Equal(t, "40.00", Format(b.PostDiscountSubtotal()))
	require.Equal(t, "5.20", Format(b.TaxAmount))
	require.Equal(t, "60.20", Format(b.GrandTotal))
}

func TestComputeBreakdownDiscountCoversSubtotal(t *testing.T) {
	b := fixedCalc().ComputeBreakdown([]Line{line("30.00", 1)}, money("15.00"), taxRate, money("30.00"))
	require.True(t, b.TaxAmount.IsZero())
	require.True(t, b.GrandTotal.Equal(money("15.00")))
}

func TestComputeBreakdownGrandTotalNeverNegative(t *testing.T) {
	b := fixedCalc().ComputeBreakdown([]Line{line("5.00", 1)}, Zero, taxRate, money("500.00"))
	require.True(t, b.GrandTotal.IsZero())
	require.True(t, b.PostDiscountSubtotal().IsZero())
}

func TestComputeBreakdownTaxExemptionThreshold(t *testing.T) {
	at990 := fixedCalc().ComputeBreakdown([]Line{line("9.90", 1)}, Zero, taxRate, Zero)
	require.True(t, at990.TaxAmount.IsZero())

	above := fixedCalc().ComputeBreakdown([]Line{line("9.91", 1)}, Zero, taxRate, Zero)
	require.True(t, above.TaxAmount.IsPositive())

	custom := money("100")
	c := fixedCalc()
	c.TaxExemptionThreshold = &custom
	b := c.ComputeBreakdown([]Line{line("50.00", 1)}, Zero, taxRate, Zero)
	require.True(t, b.TaxAmount.IsZero())
}

func TestComputeBreakdownZeroTaxRate(t *testing.T) {
	b := fixedCalc().ComputeBreakdown([]Line{line("50.00", 1)}, money("15.00"), decimal.Zero, Zero)
	require.True(t, b.TaxAmount.IsZero())
	require.Equal(t, "65.00", Format(b.GrandTotal))
}

func TestComputeBreakdownUsesEffectivePrice(t *testing.T) {
	sale := line("40.00", 2)
	sale.Product.IsOnSale = true
	sale.Product.DiscountPercentage = pct("25")
	b := fixedCalc().ComputeBreakdown([]Line{sale}, Zero, decimal.Zero, Zero)
	require.Equal(t, "60.00", Format(b.Subtotal))
	require.Len(t, b.Lines, 1)
	require.Equal(t, "30.00", Format(b.Lines[0].UnitPrice))
}

func TestComputeBreakdownSkipsEmptyLines(t *testing.T) {
	b := fixedCalc().ComputeBreakdown([]Line{line("10.00", 0), line("10.00", -1), line("10.00", 1)}, Zero, decimal.Zero, Zero)
	require.Len(t, b.Lines, 1)
	require.Equal(t, "10.00", Format(b.Subtotal))
}

func TestComputeBreakdownReconcilesWithoutIntermediateRounding(t *testing.T) {
	lines := []Line{line("3.333", 3), line("0.005", 1)}
	b := fixedCalc().ComputeBreakdown(lines, money("1.115"), taxRate, money("0.001"))

	var sum Money = Zero
	for _, l := range b.Lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	require.True(t, sum.Equal(b.Subtotal))
	post := sum.Sub(money("0.001"))
	require.True(t, b.TaxAmount.Equal(post.Mul(taxRate)))
	require.True(t, b.GrandTotal.Equal(post.Add(money("1.115")).Add(post.Mul(taxRate))))
}

func TestComputeBreakdownIsDeterministic(t *testing.T) {
	lines := []Line{line("12.34", 3), line("56.78", 1)}
	c := fixedCalc()
	a := c.ComputeBreakdown(lines, money("15.00"), taxRate, money("7.5"))
	b := c.ComputeBreakdown(lines, money("15.00"), taxRate, money("7.5"))
	require.Equal(t, a, b)
}
