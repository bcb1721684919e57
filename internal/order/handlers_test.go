package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubGetter struct {
	orders map[uuid.UUID]Order
	err    error
}

func (s stubGetter) Get(_ context.Context, id uuid.UUID) (Order, error) {
	if s.err != nil {
		return Order{}, s.err
	}
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func router(g Getter) http.Handler {
	h := &Handler{Orders: g}
	r := chi.NewRouter()
	r.Get("/orders/{id}", h.Get)
	return r
}

func TestGetRendersRoundedBreakdown(t *testing.T) {
	id := uuid.New()
	o := Order{
		ID:             id,
		Email:          "ana@example.com",
		Status:         StatusPendingPayment,
		Currency:       "cad",
		Subtotal:       decimal.RequireFromString("40.00"),
		DiscountCode:   "SAVE20",
		DiscountAmount: decimal.RequireFromString("8"),
		ShippingFee:    decimal.RequireFromString("15"),
		TaxAmount:      decimal.RequireFromString("4.1600"),
		GrandTotal:     decimal.RequireFromString("51.1600"),
		Items: []Item{
			{ProductID: uuid.New(), Name: "Rose Toner", UnitPrice: decimal.RequireFromString("13.333"), Quantity: 3},
		},
	}
	rr := httptest.NewRecorder()
	router(stubGetter{orders: map[uuid.UUID]Order{id: o}}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data orderResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "4.16", body.Data.TaxAmount)
	require.Equal(t, "51.16", body.Data.GrandTotal)
	require.Equal(t, "8.00", body.Data.DiscountAmount)
	require.Equal(t, "SAVE20", *body.Data.DiscountCode)
	require.Equal(t, "13.33", body.Data.Items[0].UnitPrice)
	require.Equal(t, "40.00", body.Data.Items[0].Total)
}

func TestGetErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	router(stubGetter{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/nope", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router(stubGetter{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router(stubGetter{err: errors.New("db down")}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
