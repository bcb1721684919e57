// Package order persists checkout orders and exposes their lifecycle transitions.
package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/db/pgconv"
	"github.com/noah-isme/backend-beaute/internal/pricing"
)

// Order statuses.
const (
	StatusPendingPayment = "PENDING_PAYMENT"
	StatusPaid           = "PAID"
	StatusCanceled       = "CANCELED"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Item is a priced order line frozen at checkout time.
type Item struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice pricing.Money
	Quantity  int32
}

// Total returns the unrounded line total.
func (i Item) Total() pricing.Money {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Order is a persisted checkout with its breakdown.
type Order struct {
	ID                 uuid.UUID
	Email              string
	Status             string
	Currency           string
	Subtotal           pricing.Money
	DiscountAmount     pricing.Money
	ShippingFee        pricing.Money
	TaxAmount          pricing.Money
	GrandTotal         pricing.Money
	DiscountCode       string
	CheckoutSessionID  string
	PaymentIntentID    string
	DiscountRedeemedAt *time.Time
	PaidAt             *time.Time
	CreatedAt          time.Time
	Items              []Item
}

// Draft is the input for creating an order.
type Draft struct {
	Email        string
	Currency     string
	DiscountCode string
	Breakdown    pricing.Breakdown
}

// HasDiscount reports whether a code was applied to the order.
func (o Order) HasDiscount() bool {
	return o.DiscountCode != "" && o.DiscountAmount.IsPositive()
}

func fromRow(row dbgen.Order) Order {
	o := Order{
		ID:                 pgconv.FromUUID(row.ID),
		Email:              row.Email,
		Status:             row.Status,
		Currency:           row.Currency,
		Subtotal:           pgconv.Decimal(row.Subtotal),
		DiscountAmount:     pgconv.Decimal(row.DiscountAmount),
		ShippingFee:        pgconv.Decimal(row.ShippingFee),
		TaxAmount:          pgconv.Decimal(row.TaxAmount),
		GrandTotal:         pgconv.Decimal(row.GrandTotal),
		DiscountCode:       row.DiscountCode.String,
		CheckoutSessionID:  row.CheckoutSessionID.String,
		PaymentIntentID:    row.PaymentIntentID.String,
		DiscountRedeemedAt: pgconv.TimePtr(row.DiscountRedeemedAt),
		PaidAt:             pgconv.TimePtr(row.PaidAt),
	}
	if row.CreatedAt.Valid {
		o.CreatedAt = row.CreatedAt.Time
	}
	return o
}

func itemFromRow(row dbgen.OrderItem) Item {
	return Item{
		ProductID: pgconv.FromUUID(row.ProductID),
		Name:      row.Name,
		UnitPrice: pgconv.Decimal(row.UnitPrice),
		Quantity:  row.Quantity,
	}
}
