package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-beaute/internal/obs"
	"github.com/noah-isme/backend-beaute/internal/pricing"
)

// ErrNotConfigured is returned when the service has no store.
var ErrNotConfigured = errors.New("discount service not configured")

// Store captures the persistence operations required by the discount service.
type Store interface {
	// GetByCode returns ErrCodeNotFound when no code matches.
	GetByCode(ctx context.Context, code string) (Code, error)
	// Redeem records the usage and increments the counter atomically. created is false
	// when the order already redeemed the code.
	Redeem(ctx context.Context, r Redemption) (usage Usage, created bool, err error)
	Create(ctx context.Context, c Code) (Code, error)
	Update(ctx context.Context, c Code) (Code, error)
	List(ctx context.Context, limit, offset int32) ([]Code, error)
	ListUsages(ctx context.Context, codeID uuid.UUID, limit, offset int32) ([]Usage, error)
}

// Result is the outcome of a successful validation.
type Result struct {
	Valid          bool
	Code           Code
	DiscountAmount pricing.Money
}

// Redemption describes a confirmed order consuming a code.
type Redemption struct {
	Code           string
	OrderID        uuid.UUID
	Email          string
	DiscountAmount pricing.Money
	OrderTotal     pricing.Money
}

// Service validates and redeems discount codes.
type Service struct {
	Store  Store
	Now    func() time.Time
	Logger zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Validate checks raw against the code rules for the given pre-discount total and
// computes the discount. Rule violations are returned as errors matching the package
// sentinels; any other error is an infrastructure failure.
func (s *Service) Validate(ctx context.Context, raw string, preDiscountTotal pricing.Money) (res Result, err error) {
	if s == nil || s.Store == nil {
		return Result{}, ErrNotConfigured
	}
	ctx, span := otel.Tracer("discount.Service").Start(ctx, "DiscountService.Validate")
	defer span.End()
	defer func() {
		outcome := "valid"
		if err != nil {
			outcome = Reason(err)
			if outcome == "" {
				outcome = "error"
			}
		}
		span.SetAttributes(attribute.String("discount.outcome", outcome))
		if obs.DiscountValidationsTotal != nil {
			obs.DiscountValidationsTotal.WithLabelValues(outcome).Inc()
		}
	}()

	code := Normalize(raw)
	if code == "" {
		return Result{}, ErrCodeNotFound
	}
	span.SetAttributes(attribute.String("discount.code", code))
	if preDiscountTotal.Sign() <= 0 {
		return Result{}, ErrInvalidAmount
	}
	dc, err := s.Store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("lookup discount code: %w", err)
	}
	if err := dc.Check(s.now(), preDiscountTotal); err != nil {
		return Result{}, err
	}
	return Result{Valid: true, Code: dc, DiscountAmount: dc.Amount(preDiscountTotal)}, nil
}

// Redeem consumes the code for a confirmed order. Redeeming the same order twice is a no-op.
func (s *Service) Redeem(ctx context.Context, r Redemption) (err error) {
	if s == nil || s.Store == nil {
		return ErrNotConfigured
	}
	r.Code = Normalize(r.Code)
	if r.Code == "" {
		return ErrCodeNotFound
	}
	if r.OrderID == uuid.Nil {
		return errors.New("redeem: order id is required")
	}
	if r.DiscountAmount.IsNegative() {
		r.DiscountAmount = pricing.Zero
	}
	ctx, span := otel.Tracer("discount.Service").Start(ctx, "DiscountService.Redeem")
	defer span.End()
	span.SetAttributes(
		attribute.String("discount.code", r.Code),
		attribute.String("order.id", r.OrderID.String()),
	)

	outcome := "error"
	defer func() {
		if obs.DiscountRedemptionsTotal != nil {
			obs.DiscountRedemptionsTotal.WithLabelValues(outcome).Inc()
		}
	}()

	usage, created, err := s.Store.Redeem(ctx, r)
	if err != nil {
		if IsValidationError(err) {
			outcome = Reason(err)
		}
		s.Logger.Warn().Err(err).Str("code", r.Code).Str("order_id", r.OrderID.String()).Msg("discount redemption failed")
		return err
	}
	if !created {
		outcome = "duplicate"
		s.Logger.Debug().Str("code", r.Code).Str("order_id", r.OrderID.String()).Msg("discount already redeemed for order")
		return nil
	}
	outcome = "redeemed"
	s.Logger.Info().
		Str("code", r.Code).
		Str("order_id", r.OrderID.String()).
		Str("usage_id", usage.ID.String()).
		Str("discount", pricing.Format(usage.DiscountAmount)).
		Msg("discount redeemed")
	return nil
}

// Get loads a code by its (normalised) string.
func (s *Service) Get(ctx context.Context, raw string) (Code, error) {
	if s == nil || s.Store == nil {
		return Code{}, ErrNotConfigured
	}
	code := Normalize(raw)
	if code == "" {
		return Code{}, ErrCodeNotFound
	}
	return s.Store.GetByCode(ctx, code)
}

// Create stores a new code after normalising it.
func (s *Service) Create(ctx context.Context, c Code) (Code, error) {
	if s == nil || s.Store == nil {
		return Code{}, ErrNotConfigured
	}
	c.Code = Normalize(c.Code)
	if err := validateDefinition(c); err != nil {
		return Code{}, err
	}
	return s.Store.Create(ctx, c)
}

// Update replaces the mutable fields of an existing code. Usage counters are untouched.
func (s *Service) Update(ctx context.Context, c Code) (Code, error) {
	if s == nil || s.Store == nil {
		return Code{}, ErrNotConfigured
	}
	c.Code = Normalize(c.Code)
	if err := validateDefinition(c); err != nil {
		return Code{}, err
	}
	return s.Store.Update(ctx, c)
}

// List pages through codes, newest first.
func (s *Service) List(ctx context.Context, limit, offset int32) ([]Code, error) {
	if s == nil || s.Store == nil {
		return nil, ErrNotConfigured
	}
	return s.Store.List(ctx, limit, offset)
}

// Usages pages through the redemptions of a code.
func (s *Service) Usages(ctx context.Context, raw string, limit, offset int32) ([]Usage, error) {
	dc, err := s.Get(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.Store.ListUsages(ctx, dc.ID, limit, offset)
}

// DefinitionError reports an invalid code definition.
type DefinitionError struct {
	Field   string
	Message string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validateDefinition(c Code) error {
	if c.Code == "" {
		return &DefinitionError{Field: "code", Message: "is required"}
	}
	if !c.Kind.Valid() {
		return &DefinitionError{Field: "type", Message: "must be percentage or fixed"}
	}
	if c.Value.IsNegative() {
		return &DefinitionError{Field: "value", Message: "must not be negative"}
	}
	if c.Kind == KindPercentage && c.Value.GreaterThan(decimal.NewFromInt(100)) {
		return &DefinitionError{Field: "value", Message: "percentage must be between 0 and 100"}
	}
	if c.UsageLimit != nil && *c.UsageLimit < 0 {
		return &DefinitionError{Field: "usageLimit", Message: "must not be negative"}
	}
	if c.MinPurchaseAmount != nil && c.MinPurchaseAmount.IsNegative() {
		return &DefinitionError{Field: "minPurchaseAmount", Message: "must not be negative"}
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return &DefinitionError{Field: "endDate", Message: "must not be before startDate"}
	}
	return nil
}
