package dbgen

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type DiscountCode struct {
	ID                pgtype.UUID        `json:"id"`
	Code              string             `json:"code"`
	Kind              string             `json:"kind"`
	Value             pgtype.Numeric     `json:"value"`
	IsActive          bool               `json:"is_active"`
	StartDate         pgtype.Timestamptz `json:"start_date"`
	EndDate           pgtype.Timestamptz `json:"end_date"`
	UsageLimit        pgtype.Int4        `json:"usage_limit"`
	UsageCount        int32              `json:"usage_count"`
	MinPurchaseAmount pgtype.Numeric     `json:"min_purchase_amount"`
	Description       string             `json:"description"`
	CreatedBy         string             `json:"created_by"`
	CreatedAt         pgtype.Timestamptz `json:"created_at"`
	UpdatedAt         pgtype.Timestamptz `json:"updated_at"`
}

type DiscountCodeUsage struct {
	ID             pgtype.UUID        `json:"id"`
	CodeID         pgtype.UUID        `json:"code_id"`
	Code           string             `json:"code"`
	OrderID        pgtype.UUID        `json:"order_id"`
	Email          string             `json:"email"`
	DiscountAmount pgtype.Numeric     `json:"discount_amount"`
	OrderTotal     pgtype.Numeric     `json:"order_total"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type DomainEvent struct {
	ID          pgtype.UUID        `json:"id"`
	Topic       string             `json:"topic"`
	AggregateID pgtype.UUID        `json:"aggregate_id"`
	Payload     []byte             `json:"payload"`
	OccurredAt  pgtype.Timestamptz `json:"occurred_at"`
}

type Order struct {
	ID                 pgtype.UUID        `json:"id"`
	Email              string             `json:"email"`
	Status             string             `json:"status"`
	Currency           string             `json:"currency"`
	Subtotal           pgtype.Numeric     `json:"subtotal"`
	DiscountAmount     pgtype.Numeric     `json:"discount_amount"`
	ShippingFee        pgtype.Numeric     `json:"shipping_fee"`
	TaxAmount          pgtype.Numeric     `json:"tax_amount"`
	GrandTotal         pgtype.Numeric     `json:"grand_total"`
	DiscountCode       pgtype.Text        `json:"discount_code"`
	CheckoutSessionID  pgtype.Text        `json:"checkout_session_id"`
	PaymentIntentID    pgtype.Text        `json:"payment_intent_id"`
	DiscountRedeemedAt pgtype.Timestamptz `json:"discount_redeemed_at"`
	PaidAt             pgtype.Timestamptz `json:"paid_at"`
	CreatedAt          pgtype.Timestamptz `json:"created_at"`
	UpdatedAt          pgtype.Timestamptz `json:"updated_at"`
}

type OrderItem struct {
	ID        pgtype.UUID    `json:"id"`
	OrderID   pgtype.UUID    `json:"order_id"`
	ProductID pgtype.UUID    `json:"product_id"`
	Name      string         `json:"name"`
	UnitPrice pgtype.Numeric `json:"unit_price"`
	Quantity  int32          `json:"quantity"`
}

type Product struct {
	ID                 pgtype.UUID        `json:"id"`
	Slug               string             `json:"slug"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	Price              pgtype.Numeric     `json:"price"`
	IsOnSale           bool               `json:"is_on_sale"`
	DiscountPercentage pgtype.Numeric     `json:"discount_percentage"`
	OriginalPrice      pgtype.Numeric     `json:"original_price"`
	SaleStartDate      pgtype.Timestamptz `json:"sale_start_date"`
	SaleEndDate        pgtype.Timestamptz `json:"sale_end_date"`
	ImageUrls          []string           `json:"image_urls"`
	Active             bool               `json:"active"`
	CreatedAt          pgtype.Timestamptz `json:"created_at"`
	UpdatedAt          pgtype.Timestamptz `json:"updated_at"`
}

type AdminAuditLog struct {
	ID           pgtype.UUID        `json:"id"`
	Actor        string             `json:"actor"`
	Action       string             `json:"action"`
	ResourceType string             `json:"resource_type"`
	ResourceID   pgtype.Text        `json:"resource_id"`
	Method       string             `json:"method"`
	Route        string             `json:"route"`
	Status       int32              `json:"status"`
	Ip           pgtype.Text        `json:"ip"`
	RequestID    pgtype.Text        `json:"request_id"`
	Metadata     []byte             `json:"metadata"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}
