package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/notify"
	"github.com/noah-isme/backend-beaute/internal/order"
	"github.com/noah-isme/backend-beaute/internal/resilience"
)

// Redeemer settles the discount of a paid order.
type Redeemer interface {
	RedeemDiscountForOrder(ctx context.Context, orderID uuid.UUID) error
}

// Broadcaster delivers a bulk email campaign.
type Broadcaster interface {
	Send(ctx context.Context, c notify.Campaign) (notify.Report, error)
}

// Handlers processes background tasks.
type Handlers struct {
	Redeemer    Redeemer
	Broadcaster Broadcaster
	Logger      zerolog.Logger
}

// Mux routes task types to handlers and records processing metrics.
func (h Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(metricsMiddleware)
	mux.HandleFunc(TypeDiscountRedeem, h.Redeem)
	mux.HandleFunc(TypeEmailBroadcast, h.Broadcast)
	return mux
}

// Redeem handles discount:redeem. Rule failures and unknown orders are final.
func (h Handlers) Redeem(ctx context.Context, t *asynq.Task) error {
	var p RedeemPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode redeem payload: %v: %w", err, asynq.SkipRetry)
	}
	if h.Redeemer == nil {
		return errors.New("queue: redeemer not configured")
	}
	err := h.Redeemer.RedeemDiscountForOrder(ctx, p.OrderID)
	switch {
	case err == nil:
		h.Logger.Info().Str("order_id", p.OrderID.String()).Msg("deferred redemption completed")
		return nil
	case discount.IsValidationError(err), errors.Is(err, order.ErrNotFound):
		h.Logger.Warn().Err(err).Str("order_id", p.OrderID.String()).Msg("redemption abandoned")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}

// Broadcast handles email:broadcast. A campaign already running elsewhere is retried later.
func (h Handlers) Broadcast(ctx context.Context, t *asynq.Task) error {
	var c notify.Campaign
	if err := json.Unmarshal(t.Payload(), &c); err != nil {
		return fmt.Errorf("decode broadcast payload: %v: %w", err, asynq.SkipRetry)
	}
	if h.Broadcaster == nil {
		return errors.New("queue: broadcaster not configured")
	}
	report, err := h.Broadcaster.Send(ctx, c)
	if err != nil {
		return err
	}
	h.Logger.Info().
		Str("campaign_id", report.CampaignID).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("resumed", report.Resumed).
		Msg("broadcast task completed")
	return nil
}

const maxRetryDelay = 30 * time.Minute

// RetryDelay spaces retries with jittered exponential backoff capped at 30 minutes.
func RetryDelay(base time.Duration) asynq.RetryDelayFunc {
	if base <= 0 {
		base = 2 * time.Second
	}
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return min(resilience.Backoff(base, min(n+1, 16), 0.2), maxRetryDelay)
	}
}
