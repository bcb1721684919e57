package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/events"
	"github.com/noah-isme/backend-beaute/internal/order"
)

const testSecret = "whsec_test"

type memOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]order.Order
}

func (m *memOrders) Get(_ context.Context, id uuid.UUID) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (m *memOrders) GetBySession(_ context.Context, sessionID string) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.CheckoutSessionID == sessionID {
			return o, nil
		}
	}
	return order.Order{}, order.ErrNotFound
}

func (m *memOrders) transition(id uuid.UUID, to string, mutate func(*order.Order)) (order.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, false, order.ErrNotFound
	}
	if o.Status != order.StatusPendingPayment {
		return o, false, nil
	}
	o.Status = to
	if mutate != nil {
		mutate(&o)
	}
	m.orders[id] = o
	return o, true, nil
}

func (m *memOrders) MarkPaid(_ context.Context, id uuid.UUID, pi string) (order.Order, bool, error) {
	return m.transition(id, order.StatusPaid, func(o *order.Order) {
		now := time.Now()
		o.PaymentIntentID = pi
		o.PaidAt = &now
	})
}

func (m *memOrders) MarkCanceled(_ context.Context, id uuid.UUID) (order.Order, bool, error) {
	return m.transition(id, order.StatusCanceled, nil)
}

func (m *memOrders) MarkDiscountRedeemed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	now := time.Now()
	o.DiscountRedeemedAt = &now
	m.orders[id] = o
	return nil
}

type stubRedeemer struct {
	calls []discount.Redemption
	err   error
}

func (s *stubRedeemer) Redeem(_ context.Context, r discount.Redemption) error {
	s.calls = append(s.calls, r)
	return s.err
}

type stubRetry struct{ ids []uuid.UUID }

func (s *stubRetry) EnqueueRedemption(_ context.Context, id uuid.UUID) error {
	s.ids = append(s.ids, id)
	return nil
}

type captureEmitter struct{ topics []string }

func (c *captureEmitter) Emit(_ context.Context, topic string, id uuid.UUID, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: id}, nil
}

type fixture struct {
	orders   *memOrders
	redeemer *stubRedeemer
	retry    *stubRetry
	emitter  *captureEmitter
	mr       *miniredis.Miniredis
	hook     *Webhook
	order    order.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	o := order.Order{
		ID:                uuid.New(),
		Email:             "mia@example.com",
		Status:            order.StatusPendingPayment,
		Currency:          "cad",
		Subtotal:          decimal.RequireFromString("50"),
		DiscountCode:      "SAVE20",
		DiscountAmount:    decimal.RequireFromString("10"),
		ShippingFee:       decimal.RequireFromString("15"),
		TaxAmount:         decimal.RequireFromString("5.20"),
		GrandTotal:        decimal.RequireFromString("60.20"),
		CheckoutSessionID: "cs_test_1",
	}
	f := &fixture{
		orders:   &memOrders{orders: map[uuid.UUID]order.Order{o.ID: o}},
		redeemer: &stubRedeemer{},
		retry:    &stubRetry{},
		emitter:  &captureEmitter{},
		mr:       miniredis.RunT(t),
		order:    o,
	}
	client := redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f.hook = &Webhook{
		Secret:    testSecret,
		Settler:   &Settler{Orders: f.orders, Discounts: f.redeemer, Events: f.emitter},
		Retry:     f.retry,
		Replay:    client,
		ReplayTTL: time.Hour,
	}
	return f
}

func sign(payload string, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func sessionEvent(eventID, eventType, paymentStatus string, orderID uuid.UUID) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":{"id":"cs_test_1","object":"checkout.session","payment_status":%q,"payment_intent":"pi_123","metadata":{"order_id":%q}}}}`,
		eventID, eventType, paymentStatus, orderID)
}

func post(h *Webhook, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func TestWebhookCompletedMarksPaidAndRedeems(t *testing.T) {
	f := newFixture(t)
	payload := sessionEvent("evt_1", "checkout.session.completed", "paid", f.order.ID)

	rr := post(f.hook, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)

	got := f.orders.orders[f.order.ID]
	require.Equal(t, order.StatusPaid, got.Status)
	require.Equal(t, "pi_123", got.PaymentIntentID)
	require.NotNil(t, got.DiscountRedeemedAt)
	require.Len(t, f.redeemer.calls, 1)
	require.Equal(t, "50", f.redeemer.calls[0].OrderTotal.String())
	require.Equal(t, []string{events.TopicOrderPaid, events.TopicDiscountRedeemed}, f.emitter.topics)

	// Stripe redelivers the same event.
	rr = post(f.hook, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "duplicate")
	require.Len(t, f.redeemer.calls, 1)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	payload := sessionEvent("evt_2", "checkout.session.completed", "paid", f.order.ID)
	rr := post(f.hook, payload, sign(payload, "whsec_other"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, order.StatusPendingPayment, f.orders.orders[f.order.ID].Status)
}

func TestWebhookRedemptionFailureKeepsPayment(t *testing.T) {
	f := newFixture(t)
	f.redeemer.err = errors.New("connection reset")
	payload := sessionEvent("evt_3", "checkout.session.completed", "paid", f.order.ID)

	rr := post(f.hook, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, order.StatusPaid, f.orders.orders[f.order.ID].Status)
	require.Nil(t, f.orders.orders[f.order.ID].DiscountRedeemedAt)
	require.Equal(t, []uuid.UUID{f.order.ID}, f.retry.ids)
}

func TestWebhookLimitReachedIsNotRetried(t *testing.T) {
	f := newFixture(t)
	f.redeemer.err = discount.ErrUsageLimitReached
	payload := sessionEvent("evt_4", "checkout.session.completed", "paid", f.order.ID)

	rr := post(f.hook, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, order.StatusPaid, f.orders.orders[f.order.ID].Status)
	require.Empty(t, f.retry.ids)
	require.Contains(t, f.emitter.topics, events.TopicDiscountRedemptionDeferred)
}

func TestWebhookUnpaidSessionWaits(t *testing.T) {
	f := newFixture(t)
	payload := sessionEvent("evt_5", "checkout.session.completed", "unpaid", f.order.ID)
	rr := post(f.hook, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, order.StatusPendingPayment, f.orders.orders[f.order.ID].Status)
}

func TestWebhookExpiredCancelsOrder(t *testing.T) {
	f := newFixture(t)
	payload := sessionEvent("evt_6", "checkout.session.expired", "unpaid", f.order.ID)
	rr := post(f.hook, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, order.StatusCanceled, f.orders.orders[f.order.ID].Status)
	require.Equal(t, []string{events.TopicOrderCanceled}, f.emitter.topics)
	require.Empty(t, f.redeemer.calls)
}

func TestWebhookUnknownOrderIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	payload := sessionEvent("evt_7", "checkout.session.completed", "paid", uuid.New())
	rr := post(f.hook, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, f.redeemer.calls)
}

func TestSettlerSkipsOrdersWithoutDiscount(t *testing.T) {
	f := newFixture(t)
	o := f.order
	o.DiscountCode = ""
	require.NoError(t, f.hook.Settler.RedeemDiscount(context.Background(), o))
	require.Empty(t, f.redeemer.calls)

	require.NoError(t, f.hook.Settler.RedeemDiscountForOrder(context.Background(), f.order.ID))
	require.Empty(t, f.redeemer.calls, "pending orders are not redeemed")
}
