package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/db/pgconv"
)

// TxBeginner starts database transactions; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists orders on PostgreSQL.
type Store struct {
	DB TxBeginner
	Q  *dbgen.Queries
}

// NewStore builds a store sharing one pool for queries and transactions.
func NewStore(pool interface {
	TxBeginner
	dbgen.DBTX
}) *Store {
	return &Store{DB: pool, Q: dbgen.New(pool)}
}

// Create inserts a pending order and its items in one transaction.
func (s *Store) Create(ctx context.Context, d Draft) (Order, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("begin order: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	qtx := s.Q.WithTx(tx)

	b := d.Breakdown
	code := pgconv.Text(d.DiscountCode)
	row, err := qtx.InsertOrder(ctx, dbgen.InsertOrderParams{
		Email:          d.Email,
		Status:         StatusPendingPayment,
		Currency:       d.Currency,
		Subtotal:       pgconv.Numeric(b.Subtotal),
		DiscountAmount: pgconv.Numeric(b.DiscountAmount),
		ShippingFee:    pgconv.Numeric(b.ShippingFee),
		TaxAmount:      pgconv.Numeric(b.TaxAmount),
		GrandTotal:     pgconv.Numeric(b.GrandTotal),
		DiscountCode:   code,
	})
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	out := fromRow(row)
	for _, line := range b.Lines {
		item := Item{ProductID: line.ProductID, Name: line.Name, UnitPrice: line.UnitPrice, Quantity: int32(line.Quantity)}
		if err := qtx.InsertOrderItem(ctx, dbgen.InsertOrderItemParams{
			OrderID:   row.ID,
			ProductID: pgconv.UUID(item.ProductID),
			Name:      item.Name,
			UnitPrice: pgconv.Numeric(item.UnitPrice),
			Quantity:  item.Quantity,
		}); err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
		out.Items = append(out.Items, item)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit order: %w", err)
	}
	return out, nil
}

// Get loads an order with its items.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row, err := s.Q.GetOrder(ctx, pgconv.UUID(id))
	if err != nil {
		return Order{}, translate(err)
	}
	return s.withItems(ctx, fromRow(row))
}

// GetBySession loads the order attached to a hosted checkout session.
func (s *Store) GetBySession(ctx context.Context, sessionID string) (Order, error) {
	row, err := s.Q.GetOrderByCheckoutSession(ctx, sessionID)
	if err != nil {
		return Order{}, translate(err)
	}
	return s.withItems(ctx, fromRow(row))
}

func (s *Store) withItems(ctx context.Context, o Order) (Order, error) {
	rows, err := s.Q.ListOrderItems(ctx, pgconv.UUID(o.ID))
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	o.Items = make([]Item, 0, len(rows))
	for _, r := range rows {
		o.Items = append(o.Items, itemFromRow(r))
	}
	return o, nil
}

// AttachSession stores the checkout session id on the order.
func (s *Store) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return s.Q.SetOrderCheckoutSession(ctx, dbgen.SetOrderCheckoutSessionParams{
		ID:                pgconv.UUID(id),
		CheckoutSessionID: pgconv.Text(sessionID),
	})
}

// MarkPaid moves a pending order to PAID. changed is false when the order had
// already left PENDING_PAYMENT; the current state is returned in that case.
func (s *Store) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (Order, bool, error) {
	row, err := s.Q.MarkOrderPaid(ctx, dbgen.MarkOrderPaidParams{ID: pgconv.UUID(id), PaymentIntentID: pgconv.Text(paymentIntentID)})
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := s.Get(ctx, id)
		return current, false, err
	}
	if err != nil {
		return Order{}, false, fmt.Errorf("mark order paid: %w", err)
	}
	o, err := s.withItems(ctx, fromRow(row))
	return o, true, err
}

// MarkCanceled moves a pending order to CANCELED.
func (s *Store) MarkCanceled(ctx context.Context, id uuid.UUID) (Order, bool, error) {
	row, err := s.Q.MarkOrderCanceled(ctx, pgconv.UUID(id))
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := s.Get(ctx, id)
		return current, false, err
	}
	if err != nil {
		return Order{}, false, fmt.Errorf("mark order canceled: %w", err)
	}
	return fromRow(row), true, nil
}

// MarkDiscountRedeemed records that the order's code usage has been persisted.
func (s *Store) MarkDiscountRedeemed(ctx context.Context, id uuid.UUID) error {
	return s.Q.MarkOrderDiscountRedeemed(ctx, pgconv.UUID(id))
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
