package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the pricing view of a catalog product.
type Product struct {
	ID                 uuid.UUID
	Name               string
	Price              Money
	IsOnSale           bool
	DiscountPercentage *decimal.Decimal
	OriginalPrice      *Money
	SaleStartDate      *time.Time
	SaleEndDate        *time.Time
	ImageURLs          []string
}

// SaleActive reports whether the product's sale applies at now. The sale window
// is inclusive at both ends.
func SaleActive(p Product, now time.Time) bool {
	if !p.IsOnSale || p.DiscountPercentage == nil || p.DiscountPercentage.Sign() <= 0 {
		return false
	}
	if p.SaleStartDate != nil && now.Before(*p.SaleStartDate) {
		return false
	}
	if p.SaleEndDate != nil && now.After(*p.SaleEndDate) {
		return false
	}
	return true
}

// EffectivePrice returns the unit price charged for the product at now.
func EffectivePrice(p Product, now time.Time) Money {
	if !SaleActive(p, now) {
		return p.Price
	}
	base := p.Price
	if p.OriginalPrice != nil {
		base = *p.OriginalPrice
	}
	off := base.Mul(*p.DiscountPercentage).Div(hundred)
	return Max(Zero, base.Sub(off))
}

// RegularPrice is the reference price shown struck through next to a sale price.
func RegularPrice(p Product) Money {
	if p.OriginalPrice != nil {
		return *p.OriginalPrice
	}
	return p.Price
}
