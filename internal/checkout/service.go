package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-beaute/internal/catalog"
	"github.com/noah-isme/backend-beaute/internal/common"
	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/events"
	"github.com/noah-isme/backend-beaute/internal/order"
	"github.com/noah-isme/backend-beaute/internal/payment"
	"github.com/noah-isme/backend-beaute/internal/pricing"
)

var (
	// ErrEmptyCart is returned when no line has a positive quantity.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentUnavailable is returned when the hosted checkout could not be opened.
	ErrPaymentUnavailable = errors.New("payment provider unavailable")
)

// LineInput is one requested cart line.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// QuoteInput is the checkout state submitted by the client. It is never mutated:
// every pricing pass derives a new value from it.
type QuoteInput struct {
	Lines        []LineInput
	DiscountCode string
	Email        string
}

// Quote is the outcome of pricing a QuoteInput.
type Quote struct {
	Currency     string
	Breakdown    pricing.Breakdown
	DiscountCode string
	// DiscountError holds the rule failure of a supplied code. The quote is still
	// priced without a discount in that case.
	DiscountError error
	PricedAt      time.Time
}

// SessionResult is returned once the order exists and the hosted checkout is open.
type SessionResult struct {
	Order     order.Order
	SessionID string
	URL       string
	ExpiresAt time.Time
}

// ProductSource loads active products by id.
type ProductSource interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
}

// DiscountValidator validates a code against a pre-discount total.
type DiscountValidator interface {
	Validate(ctx context.Context, raw string, preDiscountTotal pricing.Money) (discount.Result, error)
}

// OrderStore persists pending orders.
type OrderStore interface {
	Create(ctx context.Context, d order.Draft) (order.Order, error)
	AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error
	MarkCanceled(ctx context.Context, id uuid.UUID) (order.Order, bool, error)
}

// Config carries pricing and redirect settings.
type Config struct {
	Currency    string
	TaxRate     decimal.Decimal
	ShippingFee pricing.Money
	Calculator  pricing.Calculator
	MaxQuantity int
	SuccessURL  string
	CancelURL   string
}

// Service prices carts and opens hosted checkout sessions.
type Service struct {
	Products  ProductSource
	Discounts DiscountValidator
	Orders    OrderStore
	Payments  payment.Provider
	Events    payment.Emitter
	Config    Config
	Now       func() time.Time
	Logger    zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Quote prices in. The sale prices and the discount are evaluated against a
// single instant, first without a discount to obtain the pre-discount subtotal the
// code is validated against, then again with the validated discount applied.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (Quote, error) {
	if s == nil || s.Products == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.Quote")
	defer span.End()

	requested, err := s.mergeLines(in.Lines)
	if err != nil {
		return Quote{}, err
	}
	ids := make([]uuid.UUID, 0, len(requested))
	for _, l := range requested {
		ids = append(ids, l.ProductID)
	}
	products, err := s.Products.GetMany(ctx, ids)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return Quote{}, common.NewAppError("PRODUCT_UNAVAILABLE", "one or more products are unavailable", http.StatusUnprocessableEntity, err)
		}
		return Quote{}, fmt.Errorf("load cart products: %w", err)
	}
	lines := make([]pricing.Line, 0, len(requested))
	for _, l := range requested {
		lines = append(lines, pricing.Line{Product: products[l.ProductID].Product, Quantity: l.Quantity})
	}

	pricedAt := s.now()
	calc := s.Config.Calculator
	calc.Now = func() time.Time { return pricedAt }

	q := Quote{Currency: s.Config.Currency, PricedAt: pricedAt}
	preDiscount := calc.ComputeBreakdown(lines, s.Config.ShippingFee, s.Config.TaxRate, pricing.Zero)
	discountAmount := pricing.Zero
	if strings.TrimSpace(in.DiscountCode) != "" {
		if s.Discounts == nil {
			return Quote{}, errors.New("discount validator not configured")
		}
		res, err := s.Discounts.Validate(ctx, in.DiscountCode, preDiscount.Subtotal)
		switch {
		case err == nil:
			q.DiscountCode = res.Code.Code
			discountAmount = res.DiscountAmount
		case discount.IsValidationError(err):
			q.DiscountError = err
		default:
			return Quote{}, err
		}
	}
	q.Breakdown = calc.ComputeBreakdown(lines, s.Config.ShippingFee, s.Config.TaxRate, discountAmount)
	span.SetAttributes(
		attribute.Int("checkout.lines", len(q.Breakdown.Lines)),
		attribute.String("checkout.grand_total", pricing.Format(q.Breakdown.GrandTotal)),
		attribute.Bool("checkout.discounted", q.DiscountCode != ""),
	)
	return q, nil
}

// CreateSession prices in, persists a pending order and opens the hosted checkout.
// A rejected discount code fails the call so the customer can retry without it.
func (s *Service) CreateSession(ctx context.Context, in QuoteInput) (SessionResult, error) {
	if s == nil || s.Orders == nil {
		return SessionResult{}, errors.New("checkout service not configured")
	}
	if s.Payments == nil {
		return SessionResult{}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, payment.ErrProviderNotConfigured)
	}
	q, err := s.Quote(ctx, in)
	if err != nil {
		return SessionResult{}, err
	}
	if q.DiscountError != nil {
		return SessionResult{}, q.DiscountError
	}
	o, err := s.Orders.Create(ctx, order.Draft{
		Email:        strings.TrimSpace(in.Email),
		Currency:     q.Currency,
		DiscountCode: q.DiscountCode,
		Breakdown:    q.Breakdown,
	})
	if err != nil {
		return SessionResult{}, fmt.Errorf("create order: %w", err)
	}
	log := s.Logger.With().Str("order_id", o.ID.String()).Logger()

	sess, err := s.Payments.CreateSession(ctx, payment.SessionRequest{
		OrderID:       o.ID,
		Email:         o.Email,
		Currency:      q.Currency,
		Items:         payment.BuildLineItems(q.Breakdown),
		DiscountCode:  q.DiscountCode,
		DiscountMinor: payment.DiscountMinorUnits(q.Breakdown),
		SuccessURL:    expandURL(s.Config.SuccessURL, o.ID),
		CancelURL:     expandURL(s.Config.CancelURL, o.ID),
	})
	if err != nil {
		log.Error().Err(err).Msg("open checkout session failed")
		if _, _, cancelErr := s.Orders.MarkCanceled(context.WithoutCancel(ctx), o.ID); cancelErr != nil {
			log.Warn().Err(cancelErr).Msg("cancel orphaned order failed")
		}
		return SessionResult{}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}
	if err := s.Orders.AttachSession(ctx, o.ID, sess.ID); err != nil {
		return SessionResult{}, fmt.Errorf("attach checkout session: %w", err)
	}
	o.CheckoutSessionID = sess.ID
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicOrderCreated, o.ID, payment.OrderEventPayload(o)); err != nil {
			log.Warn().Err(err).Msg("emit order.created failed")
		}
	}
	log.Info().Str("session_id", sess.ID).Str("grand_total", pricing.Format(o.GrandTotal)).Msg("checkout session opened")
	return SessionResult{Order: o, SessionID: sess.ID, URL: sess.URL, ExpiresAt: sess.ExpiresAt}, nil
}

// mergeLines drops non-positive quantities and folds repeated products into one line,
// keeping first-seen order.
func (s *Service) mergeLines(in []LineInput) ([]LineInput, error) {
	maxQty := s.Config.MaxQuantity
	if maxQty <= 0 {
		maxQty = 99
	}
	index := make(map[uuid.UUID]int, len(in))
	out := make([]LineInput, 0, len(in))
	for _, l := range in {
		if l.Quantity <= 0 || l.ProductID == uuid.Nil {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
		} else {
			index[l.ProductID] = len(out)
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil, common.NewAppError("EMPTY_CART", "cart is empty", http.StatusBadRequest, ErrEmptyCart)
	}
	for _, l := range out {
		if l.Quantity > maxQty {
			appErr := common.NewAppError("VALIDATION_FAILED", fmt.Sprintf("quantity may not exceed %d", maxQty), http.StatusBadRequest, nil)
			appErr.Details = map[string]string{"productId": l.ProductID.String()}
			return nil, appErr
		}
	}
	return out, nil
}

func expandURL(raw string, orderID uuid.UUID) string {
	return strings.ReplaceAll(raw, "{ORDER_ID}", orderID.String())
}
