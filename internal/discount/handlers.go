package discount

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-beaute/internal/common"
	"github.com/noah-isme/backend-beaute/internal/pricing"
)

// Handler exposes the storefront and admin discount endpoints.
type Handler struct {
	Svc *Service
}

type validateRequest struct {
	Code       string      `json:"code" validate:"required,max=64"`
	OrderTotal json.Number `json:"orderTotal" validate:"required"`
}

type validateResponse struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code"`
	Type           Kind   `json:"type"`
	Value          string `json:"value"`
	DiscountAmount string `json:"discountAmount"`
	Description    string `json:"description,omitempty"`
}

// Validate checks a code against an order total without consuming it.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	total, err := pricing.ParseMoney(req.OrderTotal)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "orderTotal must be a number", nil)
		return
	}
	res, err := h.Svc.Validate(r.Context(), req.Code, total)
	if err != nil {
		WriteValidationError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": validateResponse{
		Valid:          true,
		Code:           res.Code.Code,
		Type:           res.Code.Kind,
		Value:          res.Code.Value.String(),
		DiscountAmount: pricing.Format(res.DiscountAmount),
		Description:    res.Code.Description,
	}})
}

// WriteValidationError renders discount rule failures as 422 and anything else as 500.
func WriteValidationError(w http.ResponseWriter, err error) {
	if reason := Reason(err); reason != "" {
		common.JSONError(w, http.StatusUnprocessableEntity, reason, Message(err), nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to validate discount code", nil)
}

type codePayload struct {
	Code              string      `json:"code"`
	Type              Kind        `json:"type" validate:"required,oneof=percentage fixed"`
	Value             json.Number `json:"value" validate:"required"`
	IsActive          *bool       `json:"isActive"`
	StartDate         *time.Time  `json:"startDate"`
	EndDate           *time.Time  `json:"endDate"`
	UsageLimit        *int32      `json:"usageLimit" validate:"omitempty,gte=0"`
	MinPurchaseAmount json.Number `json:"minPurchaseAmount"`
	Description       string      `json:"description" validate:"max=500"`
}

func (p codePayload) toCode() (Code, error) {
	value, err := decimal.NewFromString(p.Value.String())
	if err != nil {
		return Code{}, &DefinitionError{Field: "value", Message: "must be a number"}
	}
	c := Code{
		Code:        p.Code,
		Kind:        p.Type,
		Value:       value,
		IsActive:    true,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		UsageLimit:  p.UsageLimit,
		Description: p.Description,
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if p.MinPurchaseAmount != "" {
		minimum, err := pricing.ParseMoney(p.MinPurchaseAmount)
		if err != nil {
			return Code{}, &DefinitionError{Field: "minPurchaseAmount", Message: "must be a number"}
		}
		c.MinPurchaseAmount = &minimum
	}
	return c, nil
}

type codeResponse struct {
	ID                string     `json:"id"`
	Code              string     `json:"code"`
	Type              Kind       `json:"type"`
	Value             string     `json:"value"`
	IsActive          bool       `json:"isActive"`
	StartDate         *time.Time `json:"startDate,omitempty"`
	EndDate           *time.Time `json:"endDate,omitempty"`
	UsageLimit        *int32     `json:"usageLimit,omitempty"`
	UsageCount        int32      `json:"usageCount"`
	MinPurchaseAmount *string    `json:"minPurchaseAmount,omitempty"`
	Description       string     `json:"description"`
	CreatedBy         string     `json:"createdBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func toCodeResponse(c Code) codeResponse {
	out := codeResponse{
		ID:          c.ID.String(),
		Code:        c.Code,
		Type:        c.Kind,
		Value:       c.Value.String(),
		IsActive:    c.IsActive,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		UsageLimit:  c.UsageLimit,
		UsageCount:  c.UsageCount,
		Description: c.Description,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.MinPurchaseAmount != nil {
		s := pricing.Format(*c.MinPurchaseAmount)
		out.MinPurchaseAmount = &s
	}
	return out
}

// Create inserts a new discount code.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload codePayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := payload.toCode()
	if err != nil {
		writeAdminError(w, err)
		return
	}
	if sub, ok := common.Subject(r.Context()); ok {
		c.CreatedBy = sub
	}
	created, err := h.Svc.Create(r.Context(), c)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toCodeResponse(created)})
}

// Update replaces the definition of the code named in the path. The active
// flag is only changed when the payload carries isActive.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var payload codePayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	payload.Code = chi.URLParam(r, "code")
	c, err := payload.toCode()
	if err != nil {
		writeAdminError(w, err)
		return
	}
	// An omitted isActive keeps the stored flag.
	if payload.IsActive == nil {
		current, err := h.Svc.Get(r.Context(), payload.Code)
		if err != nil {
			writeAdminError(w, err)
			return
		}
		c.IsActive = current.IsActive
	}
	updated, err := h.Svc.Update(r.Context(), c)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toCodeResponse(updated)})
}

// List returns a page of discount codes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, 20, 100)
	codes, err := h.Svc.List(r.Context(), page.Limit(), page.Offset())
	if err != nil {
		writeAdminError(w, err)
		return
	}
	data := make([]codeResponse, 0, len(codes))
	for _, c := range codes {
		data = append(data, toCodeResponse(c))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data, "pagination": page})
}

type usageResponse struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	Email          string    `json:"email"`
	DiscountAmount string    `json:"discountAmount"`
	OrderTotal     string    `json:"orderTotal"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Usages returns the redemptions of the code named in the path.
func (h *Handler) Usages(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, 50, 200)
	usages, err := h.Svc.Usages(r.Context(), chi.URLParam(r, "code"), page.Limit(), page.Offset())
	if err != nil {
		writeAdminError(w, err)
		return
	}
	data := make([]usageResponse, 0, len(usages))
	for _, u := range usages {
		data = append(data, usageResponse{
			ID:             u.ID.String(),
			OrderID:        u.OrderID.String(),
			Email:          u.Email,
			DiscountAmount: pricing.Format(u.DiscountAmount),
			OrderTotal:     pricing.Format(u.OrderTotal),
			CreatedAt:      u.CreatedAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data, "pagination": page})
}

func writeAdminError(w http.ResponseWriter, err error) {
	var defErr *DefinitionError
	switch {
	case errors.As(err, &defErr):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid discount code", map[string]string{defErr.Field: defErr.Message})
	case errors.Is(err, ErrCodeExists):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "discount code already exists", nil)
	case errors.Is(err, ErrCodeNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "discount code not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount code operation failed", nil)
	}
}
