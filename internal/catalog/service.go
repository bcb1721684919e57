package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/common"
	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/db/pgconv"
	"github.com/noah-isme/backend-beaute/internal/pricing"
)

// ErrProductNotFound is returned when a product id does not resolve to an active product.
var ErrProductNotFound = errors.New("product not found")

type queryProvider interface {
	CountActiveProducts(ctx context.Context) (int64, error)
	ListActiveProducts(ctx context.Context, arg dbgen.ListActiveProductsParams) ([]dbgen.Product, error)
	GetProduct(ctx context.Context, id pgtype.UUID) (dbgen.Product, error)
	ListProductsByIDs(ctx context.Context, ids []pgtype.UUID) ([]dbgen.Product, error)
}

// Product is a catalog entry together with its pricing attributes.
type Product struct {
	pricing.Product
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultLimit int
	maxLimit     int
	now          func() time.Time
	logger       zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
	Now          func() time.Time
	Logger       zerolog.Logger
}

// ListParams captures paging for product listing.
type ListParams struct {
	Page  int
	Limit int
}

// ProductView is the public representation of a product priced at request time.
type ProductView struct {
	ID                 string     `json:"id"`
	Slug               string     `json:"slug"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Price              string     `json:"price"`
	RegularPrice       string     `json:"regularPrice"`
	OnSale             bool       `json:"onSale"`
	DiscountPercentage *string    `json:"discountPercentage,omitempty"`
	SaleEndsAt         *time.Time `json:"saleEndsAt,omitempty"`
	Images             []string   `json:"images"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductView
	Total int64
	Page  int
	Limit int
}

type cachedList struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 24
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          now,
		logger:       cfg.Logger,
	}, nil
}

// ParseListParams normalises raw query values.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(l, s.maxLimit)
	}
	return params, nil
}

// ListProducts returns active products with their effective price at request time.
// Cached entries hold the raw sale attributes, so prices are never served stale.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key := fmt.Sprintf("list:%d:%d", params.Page, params.Limit)
	var cached cachedList
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	} else if ok {
		return s.listResult(cached, params), nil
	}

	total, err := s.queries.CountActiveProducts(ctx)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.queries.ListActiveProducts(ctx, dbgen.ListActiveProductsParams{
		Limit:  int32(params.Limit),
		Offset: int32((params.Page - 1) * params.Limit),
	})
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	cached = cachedList{Items: make([]Product, 0, len(rows)), Total: total}
	for _, row := range rows {
		cached.Items = append(cached.Items, FromRow(row))
	}
	if err := s.cache.SetJSON(ctx, key, cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return s.listResult(cached, params), nil
}

func (s *Service) listResult(list cachedList, params ListParams) ProductListResult {
	now := s.now()
	items := make([]ProductView, 0, len(list.Items))
	for _, p := range list.Items {
		items = append(items, View(p, now))
	}
	return ProductListResult{Items: items, Total: list.Total, Page: params.Page, Limit: params.Limit}
}

// GetProduct returns a single active product view.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (ProductView, error) {
	key := "product:" + id.String()
	var p Product
	ok, err := s.cache.GetJSON(ctx, key, &p)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	if !ok {
		row, err := s.queries.GetProduct(ctx, pgconv.UUID(id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ProductView{}, notFound()
			}
			return ProductView{}, fmt.Errorf("get product: %w", err)
		}
		p = FromRow(row)
		if err := s.cache.SetJSON(ctx, key, p); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	if !p.Active {
		return ProductView{}, notFound()
	}
	return View(p, s.now()), nil
}

// GetMany loads active products by id straight from the database. Missing or
// inactive ids are reported with ErrProductNotFound.
func (s *Service) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]Product{}, nil
	}
	pgIDs := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		pgIDs = append(pgIDs, pgconv.UUID(id))
	}
	rows, err := s.queries.ListProductsByIDs(ctx, pgIDs)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	out := make(map[uuid.UUID]Product, len(rows))
	for _, row := range rows {
		p := FromRow(row)
		if p.Active {
			out[p.ID] = p
		}
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
	}
	return out, nil
}

// FromRow converts a products row.
func FromRow(row dbgen.Product) Product {
	return Product{
		Product: pricing.Product{
			ID:                 pgconv.FromUUID(row.ID),
			Name:               row.Name,
			Price:              pgconv.Decimal(row.Price),
			IsOnSale:           row.IsOnSale,
			DiscountPercentage: pgconv.DecimalPtr(row.DiscountPercentage),
			OriginalPrice:      pgconv.DecimalPtr(row.OriginalPrice),
			SaleStartDate:      pgconv.TimePtr(row.SaleStartDate),
			SaleEndDate:        pgconv.TimePtr(row.SaleEndDate),
			ImageURLs:          row.ImageUrls,
		},
		Slug:        row.Slug,
		Description: row.Description,
		Active:      row.Active,
	}
}

// View prices p at now.
func View(p Product, now time.Time) ProductView {
	onSale := pricing.SaleActive(p.Product, now)
	v := ProductView{
		ID:           p.ID.String(),
		Slug:         p.Slug,
		Name:         p.Name,
		Description:  p.Description,
		Price:        pricing.Format(pricing.EffectivePrice(p.Product, now)),
		RegularPrice: pricing.Format(p.Price),
		OnSale:       onSale,
		Images:       p.ImageURLs,
	}
	if v.Images == nil {
		v.Images = []string{}
	}
	if onSale {
		v.RegularPrice = pricing.Format(pricing.RegularPrice(p.Product))
		pct := p.DiscountPercentage.Round(2).String()
		v.DiscountPercentage = &pct
		v.SaleEndsAt = p.SaleEndDate
	}
	return v
}

func notFound() error {
	return common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, ErrProductNotFound)
}

func badRequest(field, message string, err error) error {
	appErr := common.NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err)
	appErr.Details = map[string]string{"field": field}
	return appErr
}
