package common

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleItem struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

type samplePayload struct {
	Email string       `json:"email" validate:"required,email"`
	Items []sampleItem `json:"items" validate:"required,min=1,dive"`
}

func TestDecodeJSONReportsFieldPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","items":[{"productId":"x","quantity":0}]}`))
	var p samplePayload
	err := DecodeJSON(req, &p)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid email", details["email"])
	require.Equal(t, "must be a valid uuid", details["items[0].productId"])
	require.Equal(t, "must be at least 1", details["items[0].quantity"])
}

func TestDecodeJSONMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	var p samplePayload
	err := DecodeJSON(req, &p)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}
