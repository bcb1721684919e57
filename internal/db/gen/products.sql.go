package dbgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, slug, name, description, price, is_on_sale, discount_percentage, original_price,
       sale_start_date, sale_end_date, image_urls, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Slug,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.IsOnSale,
		&i.DiscountPercentage,
		&i.OriginalPrice,
		&i.SaleStartDate,
		&i.SaleEndDate,
		&i.ImageUrls,
		&i.Active,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const countActiveProducts = `-- name: CountActiveProducts :one
SELECT count(*) FROM products WHERE active
`

func (q *Queries) CountActiveProducts(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveProducts)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getProduct = `-- name: GetProduct :one
SELECT ` + productColumns + `
FROM products
WHERE id = $1
`

func (q *Queries) GetProduct(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, id)
	return scanProduct(row)
}

const listActiveProducts = `-- name: ListActiveProducts :many
SELECT ` + productColumns + `
FROM products
WHERE active
ORDER BY name, id
LIMIT $1 OFFSET $2
`

type ListActiveProductsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListActiveProducts(ctx context.Context, arg ListActiveProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listActiveProducts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		i, err := scanProduct(rows)
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

const listProductsByIDs = `-- name: ListProductsByIDs :many
SELECT ` + productColumns + `
FROM products
WHERE id = ANY($1::uuid[])
`

func (q *Queries) ListProductsByIDs(ctx context.Context, ids []pgtype.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		i, err := scanProduct(rows)
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

const upsertProduct = `-- name: UpsertProduct :one
INSERT INTO products (
    slug, name, description, price, is_on_sale, discount_percentage, original_price,
    sale_start_date, sale_end_date, image_urls, active
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (slug) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    is_on_sale = EXCLUDED.is_on_sale,
    discount_percentage = EXCLUDED.discount_percentage,
    original_price = EXCLUDED.original_price,
    sale_start_date = EXCLUDED.sale_start_date,
    sale_end_date = EXCLUDED.sale_end_date,
    image_urls = EXCLUDED.image_urls,
    active = EXCLUDED.active,
    updated_at = now()
RETURNING ` + productColumns

type UpsertProductParams struct {
	Slug               string             `json:"slug"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	Price              pgtype.Numeric     `json:"price"`
	IsOnSale           bool               `json:"is_on_sale"`
	DiscountPercentage pgtype.Numeric     `json:"discount_percentage"`
	OriginalPrice      pgtype.Numeric     `json:"original_price"`
	SaleStartDate      pgtype.Timestamptz `json:"sale_start_date"`
	SaleEndDate        pgtype.Timestamptz `json:"sale_end_date"`
	ImageUrls          []string           `json:"image_urls"`
	Active             bool               `json:"active"`
}

func (q *Queries) UpsertProduct(ctx context.Context, arg UpsertProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, upsertProduct,
		arg.Slug,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.IsOnSale,
		arg.DiscountPercentage,
		arg.OriginalPrice,
		arg.SaleStartDate,
		arg.SaleEndDate,
		arg.ImageUrls,
		arg.Active,
	)
	return scanProduct(row)
}
