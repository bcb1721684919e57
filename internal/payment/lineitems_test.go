package payment

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/pricing"
)

func TestSanitizeImageURL(t *testing.T) {
	cases := map[string]bool{
		"https://cdn.beaute.test/serum.jpg":        true,
		"http://images.example.com/a.png?w=400":    true,
		"/images/serum.jpg":                        false,
		"images/serum.jpg":                         false,
		"http://localhost:3000/serum.jpg":          false,
		"http://app.localhost/serum.jpg":           false,
		"http://127.0.0.1/serum.jpg":               false,
		"http://[::1]/serum.jpg":                   false,
		"http://10.0.0.4/serum.jpg":                false,
		"http://192.168.1.20/serum.jpg":            false,
		"http://0.0.0.0/serum.jpg":                 false,
		"http://127.1/serum.jpg":                   false,
		"http://2130706433/serum.jpg":              false,
		"http://0x7f000001/serum.jpg":              false,
		"http://0177.0.0.1/serum.jpg":              false,
		"http://cdn.beaute.test./serum.jpg":        true,
		"http://img.3x.example/serum.jpg":          true,
		"ftp://cdn.beaute.test/serum.jpg":          false,
		"data:image/png;base64,iVBORw0KGgo=":       false,
		"https://" + strings.Repeat("a", 2048):     false,
		"  https://cdn.beaute.test/padded.jpg  ":   true,
	}
	for raw, want := range cases {
		_, ok := SanitizeImageURL(raw)
		require.Equal(t, want, ok, raw)
	}

	exact := "https://cdn.beaute.test/" + strings.Repeat("b", MaxImageURLLength-len("https://cdn.beaute.test/"))
	got, ok := SanitizeImageURL(exact)
	require.True(t, ok)
	require.Len(t, got, MaxImageURLLength)
}

func TestSanitizeImageURLsCapsAndKeepsOrder(t *testing.T) {
	var in []string
	in = append(in, "http://localhost/x.jpg")
	for i := 0; i < 10; i++ {
		in = append(in, "https://cdn.beaute.test/"+string(rune('a'+i))+".jpg")
	}
	out := SanitizeImageURLs(in)
	require.Len(t, out, MaxImagesPerItem)
	require.Equal(t, "https://cdn.beaute.test/a.jpg", out[0])
	require.Nil(t, SanitizeImageURLs([]string{"/relative.jpg"}))
}

func TestBuildLineItems(t *testing.T) {
	b := pricing.Breakdown{
		Lines: []pricing.PricedLine{
			{ProductID: uuid.New(), Name: "Glow Serum", UnitPrice: decimal.RequireFromString("42.50"), Quantity: 2,
				ImageURLs: []string{"https://cdn.beaute.test/serum.jpg", "/local.jpg"}},
			{ProductID: uuid.New(), Name: "Rose Toner", UnitPrice: decimal.RequireFromString("13.335"), Quantity: 1},
		},
		Subtotal:       decimal.RequireFromString("98.335"),
		DiscountAmount: decimal.RequireFromString("10"),
		ShippingFee:    decimal.RequireFromString("15"),
		TaxAmount:      decimal.RequireFromString("11.4835"),
	}
	items := BuildLineItems(b)
	require.Len(t, items, 4)
	require.Equal(t, LineItem{Name: "Glow Serum", UnitAmount: 4250, Quantity: 2, Images: []string{"https://cdn.beaute.test/serum.jpg"}}, items[0])
	require.Equal(t, int64(1334), items[1].UnitAmount)
	require.Empty(t, items[1].Images)
	require.Equal(t, LineItem{Name: ShippingLineName, UnitAmount: 1500, Quantity: 1}, items[2])
	require.Equal(t, LineItem{Name: TaxLineName, UnitAmount: 1148, Quantity: 1}, items[3])
	require.Equal(t, int64(1000), DiscountMinorUnits(b))
}

func TestBuildLineItemsOmitsZeroRows(t *testing.T) {
	b := pricing.Breakdown{
		Lines:    []pricing.PricedLine{{Name: "Lip Balm", UnitPrice: decimal.RequireFromString("5"), Quantity: 1}},
		Subtotal: decimal.RequireFromString("5"),
	}
	items := BuildLineItems(b)
	require.Len(t, items, 1)
	require.Equal(t, int64(500), ItemsTotal(items))
	require.Zero(t, DiscountMinorUnits(b))
}
