package order

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/common"
	"github.com/noah-isme/backend-beaute/internal/pricing"
)

// Getter loads a single order.
type Getter interface {
	Get(ctx context.Context, id uuid.UUID) (Order, error)
}

type Handler struct {
	Orders Getter
	Logger zerolog.Logger
}

type itemResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int32  `json:"quantity"`
	Total     string `json:"total"`
}

type orderResponse struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Email          string         `json:"email"`
	Currency       string         `json:"currency"`
	Subtotal       string         `json:"subtotal"`
	DiscountCode   *string        `json:"discountCode,omitempty"`
	DiscountAmount string         `json:"discountAmount"`
	ShippingFee    string         `json:"shippingFee"`
	TaxAmount      string         `json:"taxAmount"`
	GrandTotal     string         `json:"grandTotal"`
	PaidAt         *time.Time     `json:"paidAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	Items          []itemResponse `json:"items"`
}

// Response renders o with amounts rounded to cents.
func Response(o Order) any {
	resp := orderResponse{
		ID:             o.ID.String(),
		Status:         o.Status,
		Email:          o.Email,
		Currency:       o.Currency,
		Subtotal:       pricing.Format(o.Subtotal),
		DiscountAmount: pricing.Format(o.DiscountAmount),
		ShippingFee:    pricing.Format(o.ShippingFee),
		TaxAmount:      pricing.Format(o.TaxAmount),
		GrandTotal:     pricing.Format(o.GrandTotal),
		PaidAt:         o.PaidAt,
		CreatedAt:      o.CreatedAt,
		Items:          make([]itemResponse, 0, len(o.Items)),
	}
	if o.DiscountCode != "" {
		code := o.DiscountCode
		resp.DiscountCode = &code
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, itemResponse{
			ProductID: it.ProductID.String(),
			Name:      it.Name,
			UnitPrice: pricing.Format(it.UnitPrice),
			Quantity:  it.Quantity,
			Total:     pricing.Format(it.Total()),
		})
	}
	return resp
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("order_id", id.String()).Msg("load order failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": Response(o)})
}
