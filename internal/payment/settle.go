package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/events"
	"github.com/noah-isme/backend-beaute/internal/order"
	"github.com/noah-isme/backend-beaute/internal/pricing"
)

// OrderStore is the order persistence used by settlement.
type OrderStore interface {
	Get(ctx context.Context, id uuid.UUID) (order.Order, error)
	GetBySession(ctx context.Context, sessionID string) (order.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (order.Order, bool, error)
	MarkCanceled(ctx context.Context, id uuid.UUID) (order.Order, bool, error)
	MarkDiscountRedeemed(ctx context.Context, id uuid.UUID) error
}

// Redeemer records discount code usage.
type Redeemer interface {
	Redeem(ctx context.Context, r discount.Redemption) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Settler applies the bookkeeping that follows a confirmed payment.
type Settler struct {
	Orders    OrderStore
	Discounts Redeemer
	Events    Emitter
	Logger    zerolog.Logger
}

// RedeemDiscount records the order's discount usage. It is a no-op for orders
// without a code or whose usage is already recorded. Rule failures such as an
// exhausted usage limit are final: they are reported through a
// discount.redemption_deferred event and returned so callers do not retry.
func (s *Settler) RedeemDiscount(ctx context.Context, o order.Order) error {
	if !o.HasDiscount() || o.DiscountRedeemedAt != nil {
		return nil
	}
	if s.Discounts == nil {
		return errors.New("settlement: discount redeemer not configured")
	}
	err := s.Discounts.Redeem(ctx, discount.Redemption{
		Code:           o.DiscountCode,
		OrderID:        o.ID,
		Email:          o.Email,
		DiscountAmount: o.DiscountAmount,
		OrderTotal:     o.Subtotal,
	})
	payload := events.DiscountPayload{
		OrderID:        o.ID.String(),
		Code:           o.DiscountCode,
		DiscountAmount: pricing.Format(o.DiscountAmount),
	}
	if err != nil {
		if discount.IsValidationError(err) {
			payload.Reason = discount.Reason(err)
			s.emit(ctx, events.TopicDiscountRedemptionDeferred, o.ID, payload)
		}
		return fmt.Errorf("redeem %s for order %s: %w", o.DiscountCode, o.ID, err)
	}
	if err := s.Orders.MarkDiscountRedeemed(ctx, o.ID); err != nil {
		s.Logger.Warn().Err(err).Str("order_id", o.ID.String()).Msg("mark discount redeemed failed")
	}
	s.emit(ctx, events.TopicDiscountRedeemed, o.ID, payload)
	return nil
}

// RedeemDiscountForOrder reloads the order and redeems its discount when paid.
func (s *Settler) RedeemDiscountForOrder(ctx context.Context, orderID uuid.UUID) error {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != order.StatusPaid {
		s.Logger.Warn().Str("order_id", orderID.String()).Str("status", o.Status).Msg("skip redemption for unpaid order")
		return nil
	}
	return s.RedeemDiscount(ctx, o)
}

func (s *Settler) emit(ctx context.Context, topic string, id uuid.UUID, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, id, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Str("order_id", id.String()).Msg("emit event failed")
	}
}

// OrderEventPayload renders the payload of order.* events.
func OrderEventPayload(o order.Order) events.OrderPayload {
	return events.OrderPayload{
		OrderID:      o.ID.String(),
		Email:        o.Email,
		Currency:     o.Currency,
		GrandTotal:   pricing.Format(o.GrandTotal),
		DiscountCode: o.DiscountCode,
	}
}
