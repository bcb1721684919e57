package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionRequest captures what a provider needs to open a hosted checkout.
type SessionRequest struct {
	OrderID       uuid.UUID
	Email         string
	Currency      string
	Items         []LineItem
	DiscountCode  string
	DiscountMinor int64
	SuccessURL    string
	CancelURL     string
}

// Session is the provider's hosted checkout.
type Session struct {
	Provider  string
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Provider abstracts the hosted checkout provider.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}
