package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/noah-isme/backend-beaute/internal/common"
	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/events"
	"github.com/noah-isme/backend-beaute/internal/obs"
	"github.com/noah-isme/backend-beaute/internal/order"
)

const maxWebhookBody = 64 << 10

// RedemptionRetrier schedules a later redemption attempt for a paid order.
type RedemptionRetrier interface {
	EnqueueRedemption(ctx context.Context, orderID uuid.UUID) error
}

// Webhook handles Stripe callbacks: signature verification, replay protection
// and order settlement.
type Webhook struct {
	Secret    string
	Settler   *Settler
	Retry     RedemptionRetrier
	Replay    *redis.Client
	ReplayTTL time.Duration
}

// Handle processes POST /api/v1/webhooks/stripe.
func (h *Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Secret == "" || h.Settler == nil || h.Settler.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil || len(body) > maxWebhookBody {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.count("unknown", "invalid_signature")
		common.JSONError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	eventType := string(event.Type)
	ctx := r.Context()
	log := h.Settler.Logger.With().Str("event_id", event.ID).Str("event_type", eventType).Logger()

	replayKey := "wh:stripe:" + event.ID
	if h.Replay != nil && h.ReplayTTL > 0 {
		fresh, err := h.Replay.SetNX(ctx, replayKey, "1", h.ReplayTTL).Result()
		if err != nil {
			log.Error().Err(err).Msg("replay guard unavailable")
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay guard unavailable", nil)
			return
		}
		if !fresh {
			h.count(eventType, "duplicate")
			common.JSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
			return
		}
	}

	var result string
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		result, err = h.completed(ctx, event)
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		result, err = h.expired(ctx, event)
	default:
		result = "ignored"
	}
	if err != nil {
		h.count(eventType, "error")
		log.Error().Err(err).Msg("stripe webhook processing failed")
		if h.Replay != nil && h.ReplayTTL > 0 {
			_ = h.Replay.Del(context.WithoutCancel(ctx), replayKey).Err()
		}
		common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_FAILED", "webhook processing failed", nil)
		return
	}
	h.count(eventType, result)
	common.JSON(w, http.StatusOK, map[string]any{"received": true})
}

func (h *Webhook) completed(ctx context.Context, event stripe.Event) (string, error) {
	sess, o, err := h.lookup(ctx, event)
	if err != nil || o == nil {
		return "unknown_order", err
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		return "awaiting_payment", nil
	}
	var paymentIntent string
	if sess.PaymentIntent != nil {
		paymentIntent = sess.PaymentIntent.ID
	}
	paid, changed, err := h.Settler.Orders.MarkPaid(ctx, o.ID, paymentIntent)
	if err != nil {
		return "", err
	}
	if paid.Status != order.StatusPaid {
		h.Settler.Logger.Warn().Str("order_id", o.ID.String()).Str("status", paid.Status).Msg("payment completed for non-pending order")
		return "ignored", nil
	}
	if changed {
		h.Settler.emit(ctx, events.TopicOrderPaid, paid.ID, OrderEventPayload(paid))
	}
	// Payment is final at this point; redemption failures never fail the webhook.
	if err := h.Settler.RedeemDiscount(ctx, paid); err != nil {
		h.Settler.Logger.Error().Err(err).Str("order_id", paid.ID.String()).Msg("discount redemption failed after payment")
		if !discount.IsValidationError(err) && h.Retry != nil {
			if qErr := h.Retry.EnqueueRedemption(ctx, paid.ID); qErr != nil {
				h.Settler.Logger.Error().Err(qErr).Str("order_id", paid.ID.String()).Msg("enqueue redemption retry failed")
			}
		}
	}
	return "paid", nil
}

func (h *Webhook) expired(ctx context.Context, event stripe.Event) (string, error) {
	_, o, err := h.lookup(ctx, event)
	if err != nil || o == nil {
		return "unknown_order", err
	}
	canceled, changed, err := h.Settler.Orders.MarkCanceled(ctx, o.ID)
	if err != nil {
		return "", err
	}
	if changed {
		h.Settler.emit(ctx, events.TopicOrderCanceled, canceled.ID, OrderEventPayload(canceled))
	}
	return "canceled", nil
}

// lookup resolves the order referenced by a checkout session event. A nil order
// with a nil error means the session does not belong to this store.
func (h *Webhook) lookup(ctx context.Context, event stripe.Event) (stripe.CheckoutSession, *order.Order, error) {
	var sess stripe.CheckoutSession
	if event.Data == nil {
		return sess, nil, errors.New("stripe event has no data")
	}
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return sess, nil, err
	}
	var (
		o   order.Order
		err error
	)
	if id, parseErr := uuid.Parse(sess.Metadata["order_id"]); parseErr == nil {
		o, err = h.Settler.Orders.Get(ctx, id)
	} else {
		o, err = h.Settler.Orders.GetBySession(ctx, sess.ID)
	}
	if errors.Is(err, order.ErrNotFound) {
		h.Settler.Logger.Warn().Str("session_id", sess.ID).Msg("checkout session does not match an order")
		return sess, nil, nil
	}
	if err != nil {
		return sess, nil, err
	}
	return sess, &o, nil
}

func (h *Webhook) count(event, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(event, result).Inc()
	}
}
