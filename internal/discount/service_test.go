package discount

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/pricing"
)

// memStore is an in-memory Store that enforces the same redemption rules as PGStore.
type memStore struct {
	mu      sync.Mutex
	codes   map[string]Code
	usages  []Usage
	lookups int
	err     error
}

func newMemStore(codes ...Code) *memStore {
	s := &memStore{codes: map[string]Code{}}
	for _, c := range codes {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		s.codes[c.Code] = c
	}
	return s
}

func (s *memStore) GetByCode(_ context.Context, code string) (Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.err != nil {
		return Code{}, s.err
	}
	c, ok := s.codes[code]
	if !ok {
		return Code{}, ErrCodeNotFound
	}
	return c, nil
}

func (s *memStore) Redeem(_ context.Context, r Redemption) (Usage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[r.Code]
	if !ok {
		return Usage{}, false, ErrCodeNotFound
	}
	for _, u := range s.usages {
		if u.CodeID == c.ID && u.OrderID == r.OrderID {
			return Usage{}, false, nil
		}
	}
	if c.Limited() && c.UsageCount >= *c.UsageLimit {
		return Usage{}, false, ErrUsageLimitReached
	}
	c.UsageCount++
	s.codes[r.Code] = c
	u := Usage{
		ID:             uuid.New(),
		CodeID:         c.ID,
		Code:           c.Code,
		OrderID:        r.OrderID,
		Email:          r.Email,
		DiscountAmount: r.DiscountAmount,
		OrderTotal:     r.OrderTotal,
		CreatedAt:      time.Now(),
	}
	s.usages = append(s.usages, u)
	return u, true, nil
}

func (s *memStore) Create(_ context.Context, c Code) (Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[c.Code]; ok {
		return Code{}, ErrCodeExists
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.codes[c.Code] = c
	return c, nil
}

func (s *memStore) Update(_ context.Context, c Code) (Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.codes[c.Code]
	if !ok {
		return Code{}, ErrCodeNotFound
	}
	c.ID = existing.ID
	c.UsageCount = existing.UsageCount
	c.CreatedAt = existing.CreatedAt
	s.codes[c.Code] = c
	return c, nil
}

func (s *memStore) List(context.Context, int32, int32) ([]Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Code, 0, len(s.codes))
	for _, c := range s.codes {
		out = append(out, c)
	}
	return out, nil
}

func (s *memStore) ListUsages(_ context.Context, codeID uuid.UUID, _, _ int32) ([]Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Usage
	for _, u := range s.usages {
		if u.CodeID == codeID {
			out = append(out, u)
		}
	}
	return out, nil
}

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newService(store Store) *Service {
	return &Service{Store: store, Now: func() time.Time { return fixedNow }}
}

func TestValidatePercentageCode(t *testing.T) {
	svc := newService(newMemStore(Code{Code: "SAVE20", Kind: KindPercentage, Value: dec("20"), IsActive: true}))
	res, err := svc.Validate(context.Background(), " save20 ", dec("50.00"))
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, "SAVE20", res.Code.Code)
	require.Equal(t, "10.00", pricing.Format(res.DiscountAmount))
}

func TestValidateFixedCodeCappedAtTotal(t *testing.T) {
	svc := newService(newMemStore(Code{Code: "FLAT100", Kind: KindFixed, Value: dec("100"), IsActive: true}))
	res, err := svc.Validate(context.Background(), "FLAT100", dec("30.00"))
	require.NoError(t, err)
	require.Equal(t, "30.00", pricing.Format(res.DiscountAmount))
}

func TestValidateMinimumNotMet(t *testing.T) {
	svc := newService(newMemStore(Code{Code: "BIG", Kind: KindFixed, Value: dec("10"), IsActive: true, MinPurchaseAmount: ptrDec("100")}))
	res, err := svc.Validate(context.Background(), "big", dec("50"))
	require.ErrorIs(t, err, ErrMinimumNotMet)
	require.False(t, res.Valid)
	require.True(t, res.DiscountAmount.IsZero())
}

func TestValidateUsageLimitReached(t *testing.T) {
	svc := newService(newMemStore(Code{Code: "ONCE", Kind: KindFixed, Value: dec("5"), IsActive: true, UsageLimit: ptrInt32(1), UsageCount: 1}))
	_, err := svc.Validate(context.Background(), "ONCE", dec("50"))
	require.ErrorIs(t, err, ErrUsageLimitReached)
}

func TestValidateRejectsBeforeLookup(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	_, err := svc.Validate(context.Background(), "   ", dec("50"))
	require.ErrorIs(t, err, ErrCodeNotFound)

	_, err = svc.Validate(context.Background(), "SAVE20", dec("0"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Validate(context.Background(), "SAVE20", dec("-5"))
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Equal(t, 0, store.lookups)
}

func TestValidateUnknownCode(t *testing.T) {
	_, err := newService(newMemStore()).Validate(context.Background(), "NOPE", dec("50"))
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestValidateInfrastructureErrorIsNotValidationError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection reset")
	_, err := newService(store).Validate(context.Background(), "SAVE20", dec("50"))
	require.Error(t, err)
	require.False(t, IsValidationError(err))
}

func TestRedeemIsIdempotentPerOrder(t *testing.T) {
	store := newMemStore(Code{Code: "SAVE20", Kind: KindPercentage, Value: dec("20"), IsActive: true})
	svc := newService(store)
	orderID := uuid.New()
	r := Redemption{Code: "save20", OrderID: orderID, Email: "a@example.com", DiscountAmount: dec("10"), OrderTotal: dec("50")}

	require.NoError(t, svc.Redeem(context.Background(), r))
	require.NoError(t, svc.Redeem(context.Background(), r))
	require.Equal(t, int32(1), store.codes["SAVE20"].UsageCount)
	require.Len(t, store.usages, 1)
}

func TestRedeemConcurrentLastUse(t *testing.T) {
	store := newMemStore(Code{Code: "LAST", Kind: KindFixed, Value: dec("5"), IsActive: true, UsageLimit: ptrInt32(1)})
	svc := newService(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Redeem(context.Background(), Redemption{Code: "LAST", OrderID: uuid.New(), DiscountAmount: dec("5"), OrderTotal: dec("20")})
		}(i)
	}
	wg.Wait()

	var ok, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrUsageLimitReached):
			limited++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, limited)
	require.Equal(t, int32(1), store.codes["LAST"].UsageCount)
}

func TestRedeemRequiresOrder(t *testing.T) {
	svc := newService(newMemStore())
	require.Error(t, svc.Redeem(context.Background(), Redemption{Code: "X"}))
	require.ErrorIs(t, svc.Redeem(context.Background(), Redemption{OrderID: uuid.New()}), ErrCodeNotFound)
}

func TestCreateNormalisesAndValidates(t *testing.T) {
	svc := newService(newMemStore())
	c, err := svc.Create(context.Background(), Code{Code: " spring ", Kind: KindPercentage, Value: dec("15"), IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "SPRING", c.Code)

	_, err = svc.Create(context.Background(), Code{Code: "SPRING", Kind: KindPercentage, Value: dec("15")})
	require.ErrorIs(t, err, ErrCodeExists)

	var defErr *DefinitionError
	_, err = svc.Create(context.Background(), Code{Code: "TOO", Kind: KindPercentage, Value: dec("120")})
	require.True(t, errors.As(err, &defErr))
	require.Equal(t, "value", defErr.Field)

	start := fixedNow
	end := fixedNow.Add(-time.Hour)
	_, err = svc.Create(context.Background(), Code{Code: "BACKWARDS", Kind: KindFixed, Value: dec("1"), StartDate: &start, EndDate: &end})
	require.True(t, errors.As(err, &defErr))
	require.Equal(t, "endDate", defErr.Field)
}

func TestUsagesLookupByCode(t *testing.T) {
	store := newMemStore(Code{Code: "SAVE20", Kind: KindPercentage, Value: dec("20"), IsActive: true})
	svc := newService(store)
	require.NoError(t, svc.Redeem(context.Background(), Redemption{Code: "SAVE20", OrderID: uuid.New(), DiscountAmount: dec("10"), OrderTotal: dec("50")}))

	usages, err := svc.Usages(context.Background(), "save20", 10, 0)
	require.NoError(t, err)
	require.Len(t, usages, 1)

	_, err = svc.Usages(context.Background(), "missing", 10, 0)
	require.ErrorIs(t, err, ErrCodeNotFound)
}
