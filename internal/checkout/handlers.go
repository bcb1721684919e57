package checkout

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-beaute/internal/common"
	"github.com/noah-isme/backend-beaute/internal/discount"
	"github.com/noah-isme/backend-beaute/internal/order"
	"github.com/noah-isme/backend-beaute/internal/pricing"
)

type Handler struct {
	Svc *Service
}

type lineRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=999"`
}

type quoteRequest struct {
	Items        []lineRequest `json:"items" validate:"required,min=1,max=50,dive"`
	DiscountCode string        `json:"discountCode" validate:"max=64"`
}

type sessionRequest struct {
	Items        []lineRequest `json:"items" validate:"required,min=1,max=50,dive"`
	DiscountCode string        `json:"discountCode" validate:"max=64"`
	Email        string        `json:"email" validate:"required,email,max=254"`
}

type lineResponse struct {
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	UnitPrice string   `json:"unitPrice"`
	Quantity  int      `json:"quantity"`
	Total     string   `json:"total"`
	Images    []string `json:"images,omitempty"`
}

type discountErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type quoteResponse struct {
	Currency       string                 `json:"currency"`
	Items          []lineResponse         `json:"items"`
	Subtotal       string                 `json:"subtotal"`
	DiscountCode   *string                `json:"discountCode,omitempty"`
	DiscountAmount string                 `json:"discountAmount"`
	DiscountError  *discountErrorResponse `json:"discountError,omitempty"`
	ShippingFee    string                 `json:"shippingFee"`
	TaxAmount      string                 `json:"taxAmount"`
	GrandTotal     string                 `json:"grandTotal"`
	PricedAt       time.Time              `json:"pricedAt"`
}

type sessionResponse struct {
	OrderID   string     `json:"orderId"`
	SessionID string     `json:"sessionId"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Order     any        `json:"order"`
}

// Quote handles POST /api/v1/checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.Quote(r.Context(), QuoteInput{Lines: toLines(req.Items), DiscountCode: req.DiscountCode})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": renderQuote(q)})
}

// Session handles POST /api/v1/checkout/sessions.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var req sessionRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.Svc.CreateSession(r.Context(), QuoteInput{
		Lines:        toLines(req.Items),
		DiscountCode: req.DiscountCode,
		Email:        req.Email,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := sessionResponse{
		OrderID:   res.Order.ID.String(),
		SessionID: res.SessionID,
		URL:       res.URL,
		Order:     order.Response(res.Order),
	}
	if !res.ExpiresAt.IsZero() {
		resp.ExpiresAt = &res.ExpiresAt
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": resp})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case discount.IsValidationError(err):
		discount.WriteValidationError(w, err)
	case errors.Is(err, ErrPaymentUnavailable):
		common.JSONError(w, http.StatusBadGateway, "PAYMENT_UNAVAILABLE", "unable to start checkout, please try again", nil)
	default:
		var appErr *common.AppError
		if !errors.As(err, &appErr) {
			h.Svc.Logger.Error().Err(err).Msg("checkout failed")
		}
		common.WriteError(w, err)
	}
}

func toLines(items []lineRequest) []LineInput {
	out := make([]LineInput, 0, len(items))
	for _, it := range items {
		id, err := uuid.Parse(it.ProductID)
		if err != nil {
			continue
		}
		out = append(out, LineInput{ProductID: id, Quantity: it.Quantity})
	}
	return out
}

func renderQuote(q Quote) quoteResponse {
	b := q.Breakdown.Display()
	resp := quoteResponse{
		Currency:       q.Currency,
		Items:          make([]lineResponse, 0, len(b.Lines)),
		Subtotal:       pricing.Format(b.Subtotal),
		DiscountAmount: pricing.Format(b.DiscountAmount),
		ShippingFee:    pricing.Format(b.ShippingFee),
		TaxAmount:      pricing.Format(b.TaxAmount),
		GrandTotal:     pricing.Format(b.GrandTotal),
		PricedAt:       q.PricedAt,
	}
	for _, l := range b.Lines {
		resp.Items = append(resp.Items, lineResponse{
			ProductID: l.ProductID.String(),
			Name:      l.Name,
			UnitPrice: pricing.Format(l.UnitPrice),
			Quantity:  l.Quantity,
			Total:     pricing.Format(l.Total),
			Images:    l.ImageURLs,
		})
	}
	if q.DiscountCode != "" {
		code := q.DiscountCode
		resp.DiscountCode = &code
	}
	if q.DiscountError != nil {
		resp.DiscountError = &discountErrorResponse{Code: discount.Reason(q.DiscountError), Message: discount.Message(q.DiscountError)}
	}
	return resp
}
