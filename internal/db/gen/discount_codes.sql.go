package dbgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const discountCodeColumns = `id, code, kind, value, is_active, start_date, end_date, usage_limit, usage_count,
       min_purchase_amount, description, created_by, created_at, updated_at`

func scanDiscountCode(row interface{ Scan(...any) error }) (DiscountCode, error) {
	var i DiscountCode
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Kind,
		&i.Value,
		&i.IsActive,
		&i.StartDate,
		&i.EndDate,
		&i.UsageLimit,
		&i.UsageCount,
		&i.MinPurchaseAmount,
		&i.Description,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getDiscountCodeByCode = `-- name: GetDiscountCodeByCode :one
SELECT ` + discountCodeColumns + `
FROM discount_codes
WHERE code = $1
`

func (q *Queries) GetDiscountCodeByCode(ctx context.Context, code string) (DiscountCode, error) {
	row := q.db.QueryRow(ctx, getDiscountCodeByCode, code)
	return scanDiscountCode(row)
}

const getDiscountCodeByCodeForUpdate = `-- name: GetDiscountCodeByCodeForUpdate :one
SELECT ` + discountCodeColumns + `
FROM discount_codes
WHERE code = $1
FOR UPDATE
`

func (q *Queries) GetDiscountCodeByCodeForUpdate(ctx context.Context, code string) (DiscountCode, error) {
	row := q.db.QueryRow(ctx, getDiscountCodeByCodeForUpdate, code)
	return scanDiscountCode(row)
}

const listDiscountCodes = `-- name: ListDiscountCodes :many
SELECT ` + discountCodeColumns + `
FROM discount_codes
ORDER BY created_at DESC, code
LIMIT $1 OFFSET $2
`

type ListDiscountCodesParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListDiscountCodes(ctx context.Context, arg ListDiscountCodesParams) ([]DiscountCode, error) {
	rows, err := q.db.Query(ctx, listDiscountCodes, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DiscountCode
	for rows.Next() {
		i, err := scanDiscountCode(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertDiscountCode = `-- name: InsertDiscountCode :one
INSERT INTO discount_codes (
    code, kind, value, is_active, start_date, end_date, usage_limit, min_purchase_amount, description, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + discountCodeColumns

type InsertDiscountCodeParams struct {
	Code              string             `json:"code"`
	Kind              string             `json:"kind"`
	Value             pgtype.Numeric     `json:"value"`
	IsActive          bool               `json:"is_active"`
	StartDate         pgtype.Timestamptz `json:"start_date"`
	EndDate           pgtype.Timestamptz `json:"end_date"`
	UsageLimit        pgtype.Int4        `json:"usage_limit"`
	MinPurchaseAmount pgtype.Numeric     `json:"min_purchase_amount"`
	Description       string             `json:"description"`
	CreatedBy         string             `json:"created_by"`
}

func (q *Queries) InsertDiscountCode(ctx context.Context, arg InsertDiscountCodeParams) (DiscountCode, error) {
	row := q.db.QueryRow(ctx, insertDiscountCode,
		arg.Code,
		arg.Kind,
		arg.Value,
		arg.IsActive,
		arg.StartDate,
		arg.EndDate,
		arg.UsageLimit,
		arg.MinPurchaseAmount,
		arg.Description,
		arg.CreatedBy,
	)
	return scanDiscountCode(row)
}

const updateDiscountCode = `-- name: UpdateDiscountCode :one
UPDATE discount_codes SET
    kind = $2,
    value = $3,
    is_active = $4,
    start_date = $5,
    end_date = $6,
    usage_limit = $7,
    min_purchase_amount = $8,
    description = $9,
    updated_at = now()
WHERE code = $1
RETURNING ` + discountCodeColumns

type UpdateDiscountCodeParams struct {
	Code              string             `json:"code"`
	Kind              string             `json:"kind"`
	Value             pgtype.Numeric     `json:"value"`
	IsActive          bool               `json:"is_active"`
	StartDate         pgtype.Timestamptz `json:"start_date"`
	EndDate           pgtype.Timestamptz `json:"end_date"`
	UsageLimit        pgtype.Int4        `json:"usage_limit"`
	MinPurchaseAmount pgtype.Numeric     `json:"min_purchase_amount"`
	Description       string             `json:"description"`
}

func (q *Queries) UpdateDiscountCode(ctx context.Context, arg UpdateDiscountCodeParams) (DiscountCode, error) {
	row := q.db.QueryRow(ctx, updateDiscountCode,
		arg.Code,
		arg.Kind,
		arg.Value,
		arg.IsActive,
		arg.StartDate,
		arg.EndDate,
		arg.UsageLimit,
		arg.MinPurchaseAmount,
		arg.Description,
	)
	return scanDiscountCode(row)
}

const upsertDiscountCode = `-- name: UpsertDiscountCode :one
INSERT INTO discount_codes (
    code, kind, value, is_active, start_date, end_date, usage_limit, usage_count, min_purchase_amount, description, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (code) DO UPDATE SET
    kind = EXCLUDED.kind,
    value = EXCLUDED.value,
    is_active = EXCLUDED.is_active,
    start_date = EXCLUDED.start_date,
    end_date = EXCLUDED.end_date,
    usage_limit = EXCLUDED.usage_limit,
    usage_count = GREATEST(discount_codes.usage_count, EXCLUDED.usage_count),
    min_purchase_amount = EXCLUDED.min_purchase_amount,
    description = EXCLUDED.description,
    updated_at = now()
RETURNING ` + discountCodeColumns

type UpsertDiscountCodeParams struct {
	Code              string             `json:"code"`
	Kind              string             `json:"kind"`
	Value             pgtype.Numeric     `json:"value"`
	IsActive          bool               `json:"is_active"`
	StartDate         pgtype.Timestamptz `json:"start_date"`
	EndDate           pgtype.Timestamptz `json:"end_date"`
	UsageLimit        pgtype.Int4        `json:"usage_limit"`
	UsageCount        int32              `json:"usage_count"`
	MinPurchaseAmount pgtype.Numeric     `json:"min_purchase_amount"`
	Description       string             `json:"description"`
	CreatedBy         string             `json:"created_by"`
}

func (q *Queries) UpsertDiscountCode(ctx context.Context, arg UpsertDiscountCodeParams) (DiscountCode, error) {
	row := q.db.QueryRow(ctx, upsertDiscountCode,
		arg.Code,
		arg.Kind,
		arg.Value,
		arg.IsActive,
		arg.StartDate,
		arg.EndDate,
		arg.UsageLimit,
		arg.UsageCount,
		arg.MinPurchaseAmount,
		arg.Description,
		arg.CreatedBy,
	)
	return scanDiscountCode(row)
}

const incrementDiscountCodeUsage = `-- name: IncrementDiscountCodeUsage :one
UPDATE discount_codes
SET usage_count = usage_count + 1,
    updated_at = now()
WHERE id = $1
  AND (usage_limit IS NULL OR usage_limit = 0 OR usage_count < usage_limit)
RETURNING usage_count
`

// IncrementDiscountCodeUsage returns pgx.ErrNoRows when the code has no remaining uses.
func (q *Queries) IncrementDiscountCodeUsage(ctx context.Context, id pgtype.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, incrementDiscountCodeUsage, id)
	var usageCount int32
	err := row.Scan(&usageCount)
	return usageCount, err
}

const discountCodeUsageColumns = `id, code_id, code, order_id, email, discount_amount, order_total, created_at`

func scanDiscountCodeUsage(row interface{ Scan(...any) error }) (DiscountCodeUsage, error) {
	var i DiscountCodeUsage
	err := row.Scan(
		&i.ID,
		&i.CodeID,
		&i.Code,
		&i.OrderID,
		&i.Email,
		&i.DiscountAmount,
		&i.OrderTotal,
		&i.CreatedAt,
	)
	return i, err
}

const insertDiscountCodeUsage = `-- name: InsertDiscountCodeUsage :one
INSERT INTO discount_code_usages (code_id, code, order_id, email, discount_amount, order_total)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code_id, order_id) DO NOTHING
RETURNING ` + discountCodeUsageColumns

type InsertDiscountCodeUsageParams struct {
	CodeID         pgtype.UUID    `json:"code_id"`
	Code           string         `json:"code"`
	OrderID        pgtype.UUID    `json:"order_id"`
	Email          string         `json:"email"`
	DiscountAmount pgtype.Numeric `json:"discount_amount"`
	OrderTotal     pgtype.Numeric `json:"order_total"`
}

// InsertDiscountCodeUsage returns pgx.ErrNoRows when the order already redeemed the code.
func (q *Queries) InsertDiscountCodeUsage(ctx context.Context, arg InsertDiscountCodeUsageParams) (DiscountCodeUsage, error) {
	row := q.db.QueryRow(ctx, insertDiscountCodeUsage,
		arg.CodeID,
		arg.Code,
		arg.OrderID,
		arg.Email,
		arg.DiscountAmount,
		arg.OrderTotal,
	)
	return scanDiscountCodeUsage(row)
}

const listDiscountCodeUsages = `-- name: ListDiscountCodeUsages :many
SELECT ` + discountCodeUsageColumns + `
FROM discount_code_usages
WHERE code_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListDiscountCodeUsagesParams struct {
	CodeID pgtype.UUID `json:"code_id"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListDiscountCodeUsages(ctx context.Context, arg ListDiscountCodeUsagesParams) ([]DiscountCodeUsage, error) {
	rows, err := q.db.Query(ctx, listDiscountCodeUsages, arg.CodeID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DiscountCodeUsage
	for rows.Next() {
		i, err := scanDiscountCodeUsage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
