package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/common"
	"github.com/noah-isme/backend-beaute/internal/events"
	"github.com/noah-isme/backend-beaute/internal/obs"
)

// EmailNotifier sends transactional emails for order events.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	StoreName    string
	TopicToggles map[string]bool
	Logger       zerolog.Logger
}

// Notify implements events.Notifier.
func (n EmailNotifier) Notify(ctx context.Context, event events.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	subject, ok := n.subjectFor(event.Topic)
	if !ok {
		return nil
	}
	var payload events.OrderPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("email notify: decode payload: %w", err)
	}
	to := strings.TrimSpace(payload.Email)
	if to == "" {
		return nil
	}
	err := n.Mail.Send(ctx, common.Email{To: to, Subject: subject, HTML: bodyFor(event.Topic, payload)})
	countEmail(event.Topic, err)
	if err != nil {
		n.Logger.Error().Err(err).Str("topic", event.Topic).Str("order_id", payload.OrderID).Msg("send order email failed")
		return fmt.Errorf("email notify: %w", err)
	}
	return nil
}

func (n EmailNotifier) subjectFor(topic string) (string, bool) {
	store := n.StoreName
	if store == "" {
		store = "Beauté"
	}
	switch topic {
	case events.TopicOrderPaid:
		return store + ": your order is confirmed", true
	case events.TopicOrderCanceled:
		return store + ": your checkout has expired", true
	default:
		return "", false
	}
}

func bodyFor(topic string, p events.OrderPayload) string {
	var b strings.Builder
	switch topic {
	case events.TopicOrderPaid:
		b.WriteString("<p>Thank you for your order!</p>")
		fmt.Fprintf(&b, "<p>Order <strong>%s</strong></p>", html.EscapeString(p.OrderID))
		fmt.Fprintf(&b, "<p>Total charged: %s %s</p>", html.EscapeString(p.GrandTotal), html.EscapeString(strings.ToUpper(p.Currency)))
		if p.DiscountCode != "" {
			fmt.Fprintf(&b, "<p>Discount code applied: %s</p>", html.EscapeString(p.DiscountCode))
		}
	case events.TopicOrderCanceled:
		fmt.Fprintf(&b, "<p>Your checkout for order <strong>%s</strong> expired before payment was completed.</p>", html.EscapeString(p.OrderID))
		b.WriteString("<p>Your cart is still waiting for you.</p>")
	}
	return b.String()
}

func countEmail(kind string, err error) {
	if obs.EmailsSentTotal == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	obs.EmailsSentTotal.WithLabelValues(kind, result).Inc()
}
