package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/db/pgconv"
)

// ErrCodeExists is returned when creating a code that is already taken.
var ErrCodeExists = errors.New("discount code already exists")

// TxBeginner starts database transactions; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	DB TxBeginner
	Q  *dbgen.Queries
}

// NewPGStore builds a store sharing one pool for queries and transactions.
func NewPGStore(pool interface {
	TxBeginner
	dbgen.DBTX
}) *PGStore {
	return &PGStore{DB: pool, Q: dbgen.New(pool)}
}

func (s *PGStore) GetByCode(ctx context.Context, code string) (Code, error) {
	row, err := s.Q.GetDiscountCodeByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Code{}, ErrCodeNotFound
		}
		return Code{}, err
	}
	return codeFromRow(row), nil
}

// Redeem locks the code row, records the usage once per order and increments the
// counter only while it is below the limit. The transaction rolls back when the
// limit has been reached.
func (s *PGStore) Redeem(ctx context.Context, r Redemption) (Usage, bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Usage{}, false, fmt.Errorf("begin redemption: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	qtx := s.Q.WithTx(tx)

	row, err := qtx.GetDiscountCodeByCodeForUpdate(ctx, r.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usage{}, false, ErrCodeNotFound
		}
		return Usage{}, false, err
	}

	usageRow, err := qtx.InsertDiscountCodeUsage(ctx, dbgen.InsertDiscountCodeUsageParams{
		CodeID:         row.ID,
		Code:           row.Code,
		OrderID:        pgconv.UUID(r.OrderID),
		Email:          r.Email,
		DiscountAmount: pgconv.Numeric(r.DiscountAmount),
		OrderTotal:     pgconv.Numeric(r.OrderTotal),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usage{}, false, nil
		}
		return Usage{}, false, fmt.Errorf("insert usage: %w", err)
	}

	if _, err := qtx.IncrementDiscountCodeUsage(ctx, row.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usage{}, false, ErrUsageLimitReached
		}
		return Usage{}, false, fmt.Errorf("increment usage: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Usage{}, false, fmt.Errorf("commit redemption: %w", err)
	}
	return usageFromRow(usageRow), true, nil
}

func (s *PGStore) Create(ctx context.Context, c Code) (Code, error) {
	row, err := s.Q.InsertDiscountCode(ctx, dbgen.InsertDiscountCodeParams{
		Code:              c.Code,
		Kind:              string(c.Kind),
		Value:             pgconv.Numeric(c.Value),
		IsActive:          c.IsActive,
		StartDate:         pgconv.Timestamptz(c.StartDate),
		EndDate:           pgconv.Timestamptz(c.EndDate),
		UsageLimit:        pgconv.Int4Ptr(c.UsageLimit),
		MinPurchaseAmount: pgconv.OptNumeric(c.MinPurchaseAmount),
		Description:       c.Description,
		CreatedBy:         c.CreatedBy,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Code{}, ErrCodeExists
		}
		return Code{}, err
	}
	return codeFromRow(row), nil
}

func (s *PGStore) Update(ctx context.Context, c Code) (Code, error) {
	row, err := s.Q.UpdateDiscountCode(ctx, dbgen.UpdateDiscountCodeParams{
		Code:              c.Code,
		Kind:              string(c.Kind),
		Value:             pgconv.Numeric(c.Value),
		IsActive:          c.IsActive,
		StartDate:         pgconv.Timestamptz(c.StartDate),
		EndDate:           pgconv.Timestamptz(c.EndDate),
		UsageLimit:        pgconv.Int4Ptr(c.UsageLimit),
		MinPurchaseAmount: pgconv.OptNumeric(c.MinPurchaseAmount),
		Description:       c.Description,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Code{}, ErrCodeNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "discount_codes_usage_within_limit" {
			return Code{}, &DefinitionError{Field: "usageLimit", Message: "must not be below the current usage count"}
		}
		return Code{}, err
	}
	return codeFromRow(row), nil
}

func (s *PGStore) List(ctx context.Context, limit, offset int32) ([]Code, error) {
	rows, err := s.Q.ListDiscountCodes(ctx, dbgen.ListDiscountCodesParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	out := make([]Code, 0, len(rows))
	for _, row := range rows {
		out = append(out, codeFromRow(row))
	}
	return out, nil
}

func (s *PGStore) ListUsages(ctx context.Context, codeID uuid.UUID, limit, offset int32) ([]Usage, error) {
	rows, err := s.Q.ListDiscountCodeUsages(ctx, dbgen.ListDiscountCodeUsagesParams{
		CodeID: pgconv.UUID(codeID),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Usage, 0, len(rows))
	for _, row := range rows {
		out = append(out, usageFromRow(row))
	}
	return out, nil
}

func codeFromRow(row dbgen.DiscountCode) Code {
	return Code{
		ID:                pgconv.FromUUID(row.ID),
		Code:              row.Code,
		Kind:              Kind(row.Kind),
		Value:             pgconv.Decimal(row.Value),
		IsActive:          row.IsActive,
		StartDate:         pgconv.TimePtr(row.StartDate),
		EndDate:           pgconv.TimePtr(row.EndDate),
		UsageLimit:        pgconv.FromInt4(row.UsageLimit),
		UsageCount:        row.UsageCount,
		MinPurchaseAmount: pgconv.DecimalPtr(row.MinPurchaseAmount),
		Description:       row.Description,
		CreatedBy:         row.CreatedBy,
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
	}
}

func usageFromRow(row dbgen.DiscountCodeUsage) Usage {
	return Usage{
		ID:             pgconv.FromUUID(row.ID),
		CodeID:         pgconv.FromUUID(row.CodeID),
		Code:           row.Code,
		OrderID:        pgconv.FromUUID(row.OrderID),
		Email:          row.Email,
		DiscountAmount: pgconv.Decimal(row.DiscountAmount),
		OrderTotal:     pgconv.Decimal(row.OrderTotal),
		CreatedAt:      row.CreatedAt.Time,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
