package discount

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/common"
)

func newRouter(store *memStore) http.Handler {
	h := &Handler{Svc: newService(store)}
	r := chi.NewRouter()
	r.Post("/discounts/validate", h.Validate)
	r.Route("/admin/discount-codes", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(common.WithSubject(req.Context(), "admin@beaute.test")))
			})
		})
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{code}", h.Update)
		r.Get("/{code}/usages", h.Usages)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	}
	return rr, out
}

func TestValidateHandlerSuccess(t *testing.T) {
	h := newRouter(newMemStore(Code{Code: "SAVE20", Kind: KindPercentage, Value: dec("20"), IsActive: true}))
	rr, body := do(t, h, http.MethodPost, "/discounts/validate", `{"code":"save20","orderTotal":"50.00"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	data := body["data"].(map[string]any)
	require.Equal(t, true, data["valid"])
	require.Equal(t, "SAVE20", data["code"])
	require.Equal(t, "10.00", data["discountAmount"])
}

func TestValidateHandlerRuleFailureIs422(t *testing.T) {
	h := newRouter(newMemStore(Code{Code: "BIG", Kind: KindFixed, Value: dec("10"), IsActive: true, MinPurchaseAmount: ptrDec("100")}))
	rr, body := do(t, h, http.MethodPost, "/discounts/validate", `{"code":"BIG","orderTotal":50}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	errBody := body["error"].(map[string]any)
	require.Equal(t, "MINIMUM_NOT_MET", errBody["code"])
	require.Contains(t, errBody["message"], "$100.00")
}

func TestValidateHandlerMissingCode(t *testing.T) {
	h := newRouter(newMemStore())
	rr, body := do(t, h, http.MethodPost, "/discounts/validate", `{"orderTotal":50}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestAdminCreateAndUpdate(t *testing.T) {
	store := newMemStore()
	h := newRouter(store)

	rr, body := do(t, h, http.MethodPost, "/admin/discount-codes", `{"code":"welcome10","type":"percentage","value":10,"usageLimit":100,"minPurchaseAmount":"25"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	data := body["data"].(map[string]any)
	require.Equal(t, "WELCOME10", data["code"])
	require.Equal(t, "25.00", data["minPurchaseAmount"])
	require.Equal(t, "admin@beaute.test", store.codes["WELCOME10"].CreatedBy)

	rr, _ = do(t, h, http.MethodPost, "/admin/discount-codes", `{"code":"WELCOME10","type":"percentage","value":10}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr, body = do(t, h, http.MethodPut, "/admin/discount-codes/welcome10", `{"type":"fixed","value":"5.00","isActive":false}`)
	require.Equal(t, http.StatusOK, rr.Code)
	data = body["data"].(map[string]any)
	require.Equal(t, "fixed", data["type"])
	require.Equal(t, false, data["isActive"])

	rr, _ = do(t, h, http.MethodPut, "/admin/discount-codes/missing", `{"type":"fixed","value":5}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminCreateRejectsBadType(t *testing.T) {
	h := newRouter(newMemStore())
	rr, body := do(t, h, http.MethodPost, "/admin/discount-codes", `{"code":"X","type":"bogo","value":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	require.Contains(t, details, "type")
}

func TestAdminUsages(t *testing.T) {
	store := newMemStore(Code{Code: "SAVE20", Kind: KindPercentage, Value: dec("20"), IsActive: true})
	h := newRouter(store)
	require.NoError(t, newService(store).Redeem(context.Background(), Redemption{Code: "SAVE20", OrderID: [16]byte{1}, Email: "c@example.com", DiscountAmount: dec("10"), OrderTotal: dec("50")}))

	rr, body := do(t, h, http.MethodGet, "/admin/discount-codes/save20/usages", "")
	require.Equal(t, http.StatusOK, rr.Code)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	require.Equal(t, "10.00", data[0].(map[string]any)["discountAmount"])
}

func TestAdminUpdateKeepsActiveFlagWhenOmitted(t *testing.T) {
	store := newMemStore(Code{Code: "RETIRED", Kind: KindFixed, Value: dec("5"), IsActive: false})
	h := newRouter(store)

	rr, body := do(t, h, http.MethodPut, "/admin/discount-codes/retired", `{"type":"fixed","value":5,"description":"Old spring promo"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, false, body["data"].(map[string]any)["isActive"])
	require.False(t, store.codes["RETIRED"].IsActive)
	require.Equal(t, "Old spring promo", store.codes["RETIRED"].Description)

	rr, body = do(t, h, http.MethodPut, "/admin/discount-codes/retired", `{"type":"fixed","value":5,"isActive":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, true, body["data"].(map[string]any)["isActive"])
}
