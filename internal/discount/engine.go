package discount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-beaute/internal/pricing"
)

var (
	// ErrCodeNotFound is returned when no code matches the normalised input.
	ErrCodeNotFound = errors.New("discount code not found")
	// ErrCodeInactive is returned when the code has been switched off.
	ErrCodeInactive = errors.New("discount code inactive")
	// ErrCodeNotYetValid is returned before the code's start date.
	ErrCodeNotYetValid = errors.New("discount code not yet valid")
	// ErrCodeExpired is returned after the code's end date.
	ErrCodeExpired = errors.New("discount code expired")
	// ErrUsageLimitReached indicates the code has exhausted its usage quota.
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	// ErrMinimumNotMet indicates the order total is below the code's minimum purchase.
	ErrMinimumNotMet = errors.New("discount code minimum purchase not met")
	// ErrInvalidAmount is returned for non-positive order totals.
	ErrInvalidAmount = errors.New("invalid order amount")
)

// Kind selects how the code value is applied.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindPercentage || k == KindFixed
}

// Code is a redeemable discount code.
type Code struct {
	ID                uuid.UUID
	Code              string
	Kind              Kind
	Value             decimal.Decimal
	IsActive          bool
	StartDate         *time.Time
	EndDate           *time.Time
	UsageLimit        *int32
	UsageCount        int32
	MinPurchaseAmount *pricing.Money
	Description       string
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Usage records one redemption of a code against an order.
type Usage struct {
	ID             uuid.UUID
	CodeID         uuid.UUID
	Code           string
	OrderID        uuid.UUID
	Email          string
	DiscountAmount pricing.Money
	OrderTotal     pricing.Money
	CreatedAt      time.Time
}

// MinimumNotMetError carries the threshold that was not reached.
type MinimumNotMetError struct {
	Minimum pricing.Money
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("%s: minimum purchase of $%s required", ErrMinimumNotMet.Error(), pricing.Format(e.Minimum))
}

func (e *MinimumNotMetError) Unwrap() error {
	return ErrMinimumNotMet
}

// Normalize trims and upper-cases a raw code.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Limited reports whether the code has a usage cap.
func (c Code) Limited() bool {
	return c.UsageLimit != nil && *c.UsageLimit > 0
}

// Check applies the code rules in order and returns the first failure.
func (c Code) Check(now time.Time, orderTotal pricing.Money) error {
	if !c.IsActive {
		return ErrCodeInactive
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return ErrCodeNotYetValid
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return ErrCodeExpired
	}
	if c.Limited() && c.UsageCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if c.MinPurchaseAmount != nil && orderTotal.LessThan(*c.MinPurchaseAmount) {
		return &MinimumNotMetError{Minimum: *c.MinPurchaseAmount}
	}
	return nil
}

// Amount computes the discount for orderTotal. Fixed amounts never exceed the total.
func (c Code) Amount(orderTotal pricing.Money) pricing.Money {
	if orderTotal.Sign() <= 0 || c.Value.Sign() <= 0 {
		return pricing.Zero
	}
	switch c.Kind {
	case KindPercentage:
		return pricing.Min(orderTotal, orderTotal.Mul(c.Value).Div(decimal.NewFromInt(100)))
	case KindFixed:
		return pricing.Min(c.Value, orderTotal)
	default:
		return pricing.Zero
	}
}

// Reason maps a validation error to its stable API code. Unknown errors map to "".
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCodeNotFound):
		return "CODE_NOT_FOUND"
	case errors.Is(err, ErrCodeInactive):
		return "CODE_INACTIVE"
	case errors.Is(err, ErrCodeNotYetValid):
		return "CODE_NOT_YET_VALID"
	case errors.Is(err, ErrCodeExpired):
		return "CODE_EXPIRED"
	case errors.Is(err, ErrUsageLimitReached):
		return "USAGE_LIMIT_REACHED"
	case errors.Is(err, ErrMinimumNotMet):
		return "MINIMUM_NOT_MET"
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	default:
		return ""
	}
}

// IsValidationError reports whether err is one of the user-facing validation outcomes.
func IsValidationError(err error) bool {
	return Reason(err) != ""
}

// Message returns the text shown to shoppers for a validation error.
func Message(err error) string {
	var minErr *MinimumNotMetError
	switch {
	case errors.As(err, &minErr):
		return fmt.Sprintf("This code requires a minimum purchase of $%s.", pricing.Format(minErr.Minimum))
	case errors.Is(err, ErrCodeNotFound):
		return "Invalid discount code."
	case errors.Is(err, ErrCodeInactive):
		return "This discount code is no longer active."
	case errors.Is(err, ErrCodeNotYetValid):
		return "This discount code is not yet valid."
	case errors.Is(err, ErrCodeExpired):
		return "This discount code has expired."
	case errors.Is(err, ErrUsageLimitReached):
		return "This discount code has reached its usage limit."
	case errors.Is(err, ErrMinimumNotMet):
		return "Your order does not meet the minimum purchase for this code."
	case errors.Is(err, ErrInvalidAmount):
		return "Your order total must be greater than zero."
	default:
		return "Unable to apply discount code."
	}
}
