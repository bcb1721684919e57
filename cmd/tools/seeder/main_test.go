package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/auth"
	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/db/pgconv"
)

type recordingUpserter struct {
	products  []dbgen.UpsertProductParams
	discounts []dbgen.UpsertDiscountCodeParams
}

func (r *recordingUpserter) UpsertProduct(_ context.Context, arg dbgen.UpsertProductParams) (dbgen.Product, error) {
	r.products = append(r.products, arg)
	return dbgen.Product{Slug: arg.Slug}, nil
}

func (r *recordingUpserter) UpsertDiscountCode(_ context.Context, arg dbgen.UpsertDiscountCodeParams) (dbgen.DiscountCode, error) {
	r.discounts = append(r.discounts, arg)
	return dbgen.DiscountCode{Code: arg.Code}, nil
}

func TestBundledSeedApplies(t *testing.T) {
	seed, err := decodeSeed(bytes.NewReader(defaultSeed))
	require.NoError(t, err)

	rec := &recordingUpserter{}
	require.NoError(t, apply(context.Background(), rec, seed, zerolog.Nop()))
	require.Len(t, rec.products, len(seed.Products))
	require.Len(t, rec.discounts, len(seed.DiscountCodes))

	cream := rec.products[2]
	require.True(t, cream.IsOnSale)
	require.True(t, pgconv.Decimal(cream.Price).Equal(decimal.NewFromInt(68)))
	start := pgconv.TimePtr(cream.SaleStartDate)
	require.NotNil(t, start)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *start)

	require.Equal(t, "WELCOME10", rec.discounts[0].Code)
	require.False(t, rec.discounts[2].IsActive)
}

func TestBadSaleDateTakesProductOffSale(t *testing.T) {
	params, err := productParams(productRecord{
		Slug:               "rose-toner",
		Name:               "Rose Toner",
		Price:              "19.00",
		IsOnSale:           true,
		DiscountPercentage: 30,
		SaleStartDate:      "next tuesday",
	}, zerolog.Nop())
	require.NoError(t, err)
	require.False(t, params.IsOnSale)
	require.False(t, params.DiscountPercentage.Valid)
	require.True(t, params.Active)
}

func TestProductRequiresSlugAndPrice(t *testing.T) {
	_, err := productParams(productRecord{Name: "Nameless", Price: "1.00"}, zerolog.Nop())
	require.Error(t, err)

	_, err = productParams(productRecord{Slug: "x", Price: "abc"}, zerolog.Nop())
	require.Error(t, err)
}

func TestDiscountRejectsUnknownType(t *testing.T) {
	_, err := discountParams(discountRecord{Code: "bogus", Type: "bogo", Value: 1})
	require.ErrorContains(t, err, "unknown type")
}

func TestPrintAdminToken(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "seed-secret")
	var out bytes.Buffer
	require.NoError(t, printAdminToken(&out, "ops@beaute.example", time.Hour))

	v := auth.Verifier{Secret: []byte("seed-secret"), Issuer: "beaute", Audience: "beaute-admin"}
	claims, err := v.Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, auth.RoleAdmin, claims.Role)
	require.Equal(t, "ops@beaute.example", claims.Subject)
}

