package payment

import (
	"net"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-beaute/internal/pricing"
)

const (
	// MaxImageURLLength is the longest image URL the hosted checkout accepts.
	MaxImageURLLength = 2048
	// MaxImagesPerItem caps the images attached to one line item.
	MaxImagesPerItem = 8
)

// LineItem is one row of the hosted checkout page, priced in minor units.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
	Images     []string
}

// Checkout line names for the non-product rows.
const (
	ShippingLineName = "Shipping"
	TaxLineName      = "Tax"
)

// BuildLineItems flattens a breakdown into hosted checkout rows. Product lines
// carry sanitised image URLs; shipping and tax become their own rows when
// non-zero. The discount is not a row: it is applied as a coupon.
func BuildLineItems(b pricing.Breakdown) []LineItem {
	items := make([]LineItem, 0, len(b.Lines)+2)
	for _, line := range b.Lines {
		if line.Quantity <= 0 {
			continue
		}
		items = append(items, LineItem{
			Name:       line.Name,
			UnitAmount: pricing.MinorUnits(line.UnitPrice),
			Quantity:   int64(line.Quantity),
			Images:     SanitizeImageURLs(line.ImageURLs),
		})
	}
	if amount := pricing.MinorUnits(b.ShippingFee); amount > 0 {
		items = append(items, LineItem{Name: ShippingLineName, UnitAmount: amount, Quantity: 1})
	}
	if amount := pricing.MinorUnits(b.TaxAmount); amount > 0 {
		items = append(items, LineItem{Name: TaxLineName, UnitAmount: amount, Quantity: 1})
	}
	return items
}

// ItemsTotal sums rows in minor units.
func ItemsTotal(items []LineItem) int64 {
	var total int64
	for _, it := range items {
		total += it.UnitAmount * it.Quantity
	}
	return total
}

// DiscountMinorUnits converts the order discount for the coupon, never exceeding
// the product rows so the hosted total cannot go negative.
func DiscountMinorUnits(b pricing.Breakdown) int64 {
	if !b.DiscountAmount.GreaterThan(decimal.Zero) {
		return 0
	}
	return min(pricing.MinorUnits(b.DiscountAmount), pricing.MinorUnits(b.Subtotal))
}

// SanitizeImageURLs keeps the publicly resolvable URLs, in order, up to MaxImagesPerItem.
func SanitizeImageURLs(urls []string) []string {
	var out []string
	for _, raw := range urls {
		if len(out) == MaxImagesPerItem {
			break
		}
		if u, ok := SanitizeImageURL(raw); ok {
			out = append(out, u)
		}
	}
	return out
}

// SanitizeImageURL reports whether raw is an absolute http(s) URL that a remote
// service could fetch: no relative paths, no loopback, private or link-local
// hosts, and at most MaxImageURLLength characters.
func SanitizeImageURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxImageURLLength {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return "", false
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return "", false
		}
	} else if shorthandIPv4(host) {
		return "", false
	}
	return raw, true
}

// shorthandIPv4 reports hosts such as 127.1, 2130706433 or 0x7f000001 that
// resolvers accept as IPv4 addresses. No real top-level domain is numeric.
func shorthandIPv4(host string) bool {
	label := strings.TrimSuffix(host, ".")
	if i := strings.LastIndexByte(label, '.'); i >= 0 {
		label = label[i+1:]
	}
	if label == "" {
		return false
	}
	if rest, ok := strings.CutPrefix(label, "0x"); ok {
		if rest == "" {
			return true
		}
		return strings.Trim(rest, "0123456789abcdef") == ""
	}
	return strings.Trim(label, "0123456789") == ""
}
