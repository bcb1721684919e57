package dbgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, email, status, currency, subtotal, discount_amount, shipping_fee, tax_amount, grand_total,
       discount_code, checkout_session_id, payment_intent_id, discount_redeemed_at, paid_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Status,
		&i.Currency,
		&i.Subtotal,
		&i.DiscountAmount,
		&i.ShippingFee,
		&i.TaxAmount,
		&i.GrandTotal,
		&i.DiscountCode,
		&i.CheckoutSessionID,
		&i.PaymentIntentID,
		&i.DiscountRedeemedAt,
		&i.PaidAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertOrder = `-- name: InsertOrder :one
INSERT INTO orders (
    email, status, currency, subtotal, discount_amount, shipping_fee, tax_amount, grand_total, discount_code
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns

type InsertOrderParams struct {
	Email          string         `json:"email"`
	Status         string         `json:"status"`
	Currency       string         `json:"currency"`
	Subtotal       pgtype.Numeric `json:"subtotal"`
	DiscountAmount pgtype.Numeric `json:"discount_amount"`
	ShippingFee    pgtype.Numeric `json:"shipping_fee"`
	TaxAmount      pgtype.Numeric `json:"tax_amount"`
	GrandTotal     pgtype.Numeric `json:"grand_total"`
	DiscountCode   pgtype.Text    `json:"discount_code"`
}

func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, insertOrder,
		arg.Email,
		arg.Status,
		arg.Currency,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.ShippingFee,
		arg.TaxAmount,
		arg.GrandTotal,
		arg.DiscountCode,
	)
	return scanOrder(row)
}

const insertOrderItem = `-- name: InsertOrderItem :exec
INSERT INTO order_items (order_id, product_id, name, unit_price, quantity)
VALUES ($1, $2, $3, $4, $5)
`

type InsertOrderItemParams struct {
	OrderID   pgtype.UUID    `json:"order_id"`
	ProductID pgtype.UUID    `json:"product_id"`
	Name      string         `json:"name"`
	UnitPrice pgtype.Numeric `json:"unit_price"`
	Quantity  int32          `json:"quantity"`
}

func (q *Queries) InsertOrderItem(ctx context.Context, arg InsertOrderItemParams) error {
	_, err := q.db.Exec(ctx, insertOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.Name,
		arg.UnitPrice,
		arg.Quantity,
	)
	return err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	return scanOrder(row)
}

const getOrderByCheckoutSession = `-- name: GetOrderByCheckoutSession :one
SELECT ` + orderColumns + `
FROM orders
WHERE checkout_session_id = $1
`

func (q *Queries) GetOrderByCheckoutSession(ctx context.Context, checkoutSessionID string) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderByCheckoutSession, checkoutSessionID)
	return scanOrder(row)
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT id, order_id, product_id, name, unit_price, quantity
FROM order_items
WHERE order_id = $1
ORDER BY name, id
`

func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.Name,
			&i.UnitPrice,
			&i.Quantity,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setOrderCheckoutSession = `-- name: SetOrderCheckoutSession :exec
UPDATE orders
SET checkout_session_id = $2,
    updated_at = now()
WHERE id = $1
`

type SetOrderCheckoutSessionParams struct {
	ID                pgtype.UUID `json:"id"`
	CheckoutSessionID pgtype.Text `json:"checkout_session_id"`
}

func (q *Queries) SetOrderCheckoutSession(ctx context.Context, arg SetOrderCheckoutSessionParams) error {
	_, err := q.db.Exec(ctx, setOrderCheckoutSession, arg.ID, arg.CheckoutSessionID)
	return err
}

const markOrderPaid = `-- name: MarkOrderPaid :one
UPDATE orders
SET status = 'PAID',
    payment_intent_id = $2,
    paid_at = now(),
    updated_at = now()
WHERE id = $1 AND status = 'PENDING_PAYMENT'
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID              pgtype.UUID `json:"id"`
	PaymentIntentID pgtype.Text `json:"payment_intent_id"`
}

// MarkOrderPaid returns pgx.ErrNoRows when the order is no longer pending.
func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	row := q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.PaymentIntentID)
	return scanOrder(row)
}

const markOrderCanceled = `-- name: MarkOrderCanceled :one
UPDATE orders
SET status = 'CANCELED',
    updated_at = now()
WHERE id = $1 AND status = 'PENDING_PAYMENT'
RETURNING ` + orderColumns

func (q *Queries) MarkOrderCanceled(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, markOrderCanceled, id)
	return scanOrder(row)
}

const markOrderDiscountRedeemed = `-- name: MarkOrderDiscountRedeemed :exec
UPDATE orders
SET discount_redeemed_at = COALESCE(discount_redeemed_at, now()),
    updated_at = now()
WHERE id = $1
`

func (q *Queries) MarkOrderDiscountRedeemed(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, markOrderDiscountRedeemed, id)
	return err
}
