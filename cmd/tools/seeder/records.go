package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/db/pgconv"
	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/pricing"
)

// seedFile mirrors an exported catalog document. Amounts and dates stay loosely
// typed because exports mix numbers, strings and timestamp objects.
type seedFile struct {
	Products      []productRecord  `json:"products"`
	DiscountCodes []discountRecord `json:"discountCodes"`
}

type productRecord struct {
	Slug               string   `json:"slug"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Price              any      `json:"price"`
	IsOnSale           bool     `json:"isOnSale"`
	DiscountPercentage any      `json:"discountPercentage"`
	OriginalPrice      any      `json:"originalPrice"`
	SaleStartDate      any      `json:"saleStartDate"`
	SaleEndDate        any      `json:"saleEndDate"`
	ImageURLs          []string `json:"imageUrls"`
	Active             *bool    `json:"active"`
}

type discountRecord struct {
	Code              string `json:"code"`
	Type              string `json:"type"`
	Value             any    `json:"value"`
	IsActive          *bool  `json:"isActive"`
	StartDate         any    `json:"startDate"`
	EndDate           any    `json:"endDate"`
	UsageLimit        *int32 `json:"usageLimit"`
	MinPurchaseAmount any    `json:"minPurchaseAmount"`
	Description       string `json:"description"`
}

func decodeSeed(r io.Reader) (seedFile, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var f seedFile
	if err := dec.Decode(&f); err != nil {
		return seedFile{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, nil
}

// productParams converts a record. Unreadable sale attributes take the product
// off sale instead of rejecting it; the price itself is mandatory.
func productParams(rec productRecord, logger zerolog.Logger) (dbgen.UpsertProductParams, error) {
	slug := strings.TrimSpace(rec.Slug)
	if slug == "" {
		return dbgen.UpsertProductParams{}, fmt.Errorf("product %q: slug is required", rec.Name)
	}
	price, err := pricing.ParseMoney(rec.Price)
	if err != nil {
		return dbgen.UpsertProductParams{}, fmt.Errorf("product %s: price: %w", slug, err)
	}
	if price.IsNegative() {
		return dbgen.UpsertProductParams{}, fmt.Errorf("product %s: price must not be negative", slug)
	}
	params := dbgen.UpsertProductParams{
		Slug:        slug,
		Name:        strings.TrimSpace(rec.Name),
		Description: rec.Description,
		Price:       pgconv.Numeric(price),
		ImageUrls:   rec.ImageURLs,
		Active:      rec.Active == nil || *rec.Active,
	}
	if params.ImageUrls == nil {
		params.ImageUrls = []string{}
	}
	if !rec.IsOnSale {
		return params, nil
	}

	log := logger.With().Str("slug", slug).Logger()
	pct, err := pricing.ParseOptionalMoney(rec.DiscountPercentage)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable discount percentage; product not on sale")
		return params, nil
	}
	original, err := pricing.ParseOptionalMoney(rec.OriginalPrice)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable original price; ignoring it")
		original = nil
	}
	start, err := pricing.ParseInstant(rec.SaleStartDate)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable sale start date; product not on sale")
		return params, nil
	}
	end, err := pricing.ParseInstant(rec.SaleEndDate)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable sale end date; product not on sale")
		return params, nil
	}

	params.IsOnSale = true
	params.DiscountPercentage = pgconv.OptNumeric(pct)
	params.OriginalPrice = pgconv.OptNumeric(original)
	params.SaleStartDate = pgconv.Timestamptz(start)
	params.SaleEndDate = pgconv.Timestamptz(end)
	return params, nil
}

func discountParams(rec discountRecord) (dbgen.UpsertDiscountCodeParams, error) {
	code := discount.Normalize(rec.Code)
	if code == "" {
		return dbgen.UpsertDiscountCodeParams{}, fmt.Errorf("discount code is required")
	}
	kind := discount.Kind(strings.ToLower(strings.TrimSpace(rec.Type)))
	if !kind.Valid() {
		return dbgen.UpsertDiscountCodeParams{}, fmt.Errorf("discount %s: unknown type %q", code, rec.Type)
	}
	value, err := pricing.ParseMoney(rec.Value)
	if err != nil {
		return dbgen.UpsertDiscountCodeParams{}, fmt.Errorf("discount %s: value: %w", code, err)
	}
	minPurchase, err := pricing.ParseOptionalMoney(rec.MinPurchaseAmount)
	if err != nil {
		return dbgen.UpsertDiscountCodeParams{}, fmt.Errorf("discount %s: minPurchaseAmount: %w", code, err)
	}
	start, err := pricing.ParseInstant(rec.StartDate)
	if err != nil {
		return dbgen.UpsertDiscountCodeParams{}, fmt.Errorf("discount %s: startDate: %w", code, err)
	}
	end, err := pricing.ParseInstant(rec.EndDate)
	if err != nil {
		return dbgen.UpsertDiscountCodeParams{}, fmt.Errorf("discount %s: endDate: %w", code, err)
	}
	return dbgen.UpsertDiscountCodeParams{
		Code:              code,
		Kind:              string(kind),
		Value:             pgconv.Numeric(value),
		IsActive:          rec.IsActive == nil || *rec.IsActive,
		StartDate:         pgconv.Timestamptz(start),
		EndDate:           pgconv.Timestamptz(end),
		UsageLimit:        pgconv.Int4Ptr(rec.UsageLimit),
		MinPurchaseAmount: pgconv.OptNumeric(minPurchase),
		Description:       rec.Description,
		CreatedBy:         "seeder",
	}, nil
}
