package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/coupon"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-beaute/internal/obs"
	"github.com/noah-isme/backend-beaute/internal/resilience"
)

// ErrProviderNotConfigured is returned when no secret key is configured.
var ErrProviderNotConfigured = errors.New("payment provider not configured")

// StripeConfig configures the Stripe provider.
type StripeConfig struct {
	SecretKey string
	// APIURL overrides the Stripe API base, used against local fakes.
	APIURL     string
	Timeout    time.Duration
	MaxRetries int64
	Breaker    *resilience.Breaker
}

// Stripe opens Stripe Checkout sessions. Discounts are applied as single-use
// amount-off coupons created for the session.
type Stripe struct {
	sessions *session.Client
	coupons  *coupon.Client
}

// NewStripe builds a provider whose HTTP calls are traced and guarded by the breaker.
func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, ErrProviderNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	transport := otelhttp.NewTransport(resilience.NewTransport(http.DefaultTransport, cfg.Breaker))
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout, Transport: transport},
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	return &Stripe{
		sessions: &session.Client{B: backend, Key: cfg.SecretKey},
		coupons:  &coupon.Client{B: backend, Key: cfg.SecretKey},
	}, nil
}

// CreateSession implements Provider.
func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (out Session, err error) {
	ctx, span := otel.Tracer("payment.Stripe").Start(ctx, "Stripe.CreateSession")
	defer span.End()
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
			span.RecordError(err)
		}
		span.SetAttributes(attribute.String("order.id", req.OrderID.String()), attribute.String("checkout.result", result))
		if obs.CheckoutSessionsTotal != nil {
			obs.CheckoutSessionsTotal.WithLabelValues(result).Inc()
		}
	}()

	if len(req.Items) == 0 {
		return Session{}, errors.New("checkout session requires at least one line item")
	}
	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID.String()),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	for _, it := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(it.Name)}
		if len(it.Images) > 0 {
			product.Images = stripe.StringSlice(it.Images)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(it.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(it.UnitAmount),
				ProductData: product,
			},
		})
	}
	if req.DiscountMinor > 0 {
		couponID, err := s.createCoupon(ctx, req, currency)
		if err != nil {
			return Session{}, err
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(couponID)}}
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	if req.DiscountCode != "" {
		params.AddMetadata("discount_code", req.DiscountCode)
	}
	params.SetIdempotencyKey("checkout-" + req.OrderID.String())

	sess, err := s.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	out = Session{Provider: "stripe", ID: sess.ID, URL: sess.URL}
	if sess.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(sess.ExpiresAt, 0)
	}
	return out, nil
}

func (s *Stripe) createCoupon(ctx context.Context, req SessionRequest, currency string) (string, error) {
	name := req.DiscountCode
	if name == "" {
		name = "Discount"
	}
	params := &stripe.CouponParams{
		AmountOff:      stripe.Int64(req.DiscountMinor),
		Currency:       stripe.String(currency),
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		MaxRedemptions: stripe.Int64(1),
		Name:           stripe.String(truncate(name, 40)),
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.SetIdempotencyKey("coupon-" + req.OrderID.String())
	c, err := s.coupons.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create coupon: %w", err)
	}
	return c.ID, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
