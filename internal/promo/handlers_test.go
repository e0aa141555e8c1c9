package promo_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-promo/internal/engine"
	"github.com/noah-isme/backend-promo/internal/promo"
)

func newTestRouter(q *stubQueries) *chi.Mux {
	svc := newService(q)
	h := &promo.Handler{Q: q, Svc: svc, Validate: validator.New()}

	r := chi.NewRouter()
	r.Post("/coupons", h.Create)
	r.Put("/coupons/{code}", h.Update)
	r.Delete("/coupons/{code}", h.Delete)
	r.Get("/coupons/{code}", h.Get)
	r.Get("/coupons", h.List)
	r.Post("/applicable-coupons", h.Applicable)
	r.Post("/apply-coupon/{code}", h.Apply)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func cartBody(items ...map[string]any) map[string]any {
	return map[string]any{"cart": map[string]any{"items": items}}
}

func TestCreateCartWiseCoupon(t *testing.T) {
	q := &stubQueries{coupons: map[string]engine.Coupon{}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodPost, "/coupons", map[string]any{
		"code":          "SAVE10",
		"type":          "cart_wise",
		"discountType":  "percentage",
		"discountValue": 10,
		"minCartValue":  500,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, q.coupons, "SAVE10")
}

func TestCreateRejectsCartWiseWithProducts(t *testing.T) {
	q := &stubQueries{coupons: map[string]engine.Coupon{}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodPost, "/coupons", map[string]any{
		"code":               "BAD",
		"type":               "cart_wise",
		"discountValue":      10,
		"applicableProducts": []int64{1, 2},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsBxGyOverlap(t *testing.T) {
	q := &stubQueries{coupons: map[string]engine.Coupon{}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodPost, "/coupons", map[string]any{
		"code":          "B2G1",
		"type":          "bxgy",
		"discountValue": 0,
		"buyProducts":   []map[string]any{{"productId": 1, "quantity": 2}},
		"getProducts":   []map[string]any{{"productId": 1, "quantity": 1}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDuplicateCodeConflicts(t *testing.T) {
	q := &stubQueries{coupons: map[string]engine.Coupon{"SAVE10": cartWise("SAVE10", 10)}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodPost, "/coupons", map[string]any{
		"code":          "SAVE10",
		"type":          "cart_wise",
		"discountValue": 10,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetCouponNotFound(t *testing.T) {
	q := &stubQueries{coupons: map[string]engine.Coupon{}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodGet, "/coupons/NOPE", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplicableReturnsRankedCoupons(t *testing.T) {
	small := cartWise("SMALL", 5)
	big := cartWise("BIG", 20)
	q := &stubQueries{coupons: map[string]engine.Coupon{}, redeemable: []engine.Coupon{small, big}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodPost, "/applicable-coupons", cartBody(
		map[string]any{"productId": 1, "quantity": 2, "price": 1000},
	))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			Code     string `json:"code"`
			Discount int64  `json:"discount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.Equal(t, "BIG", resp.Data[0].Code)
	require.Equal(t, int64(400), resp.Data[0].Discount)
	require.Equal(t, "SMALL", resp.Data[1].Code)
}

func TestApplyAnnotatesCart(t *testing.T) {
	q := &stubQueries{coupons: map[string]engine.Coupon{"SAVE10": cartWise("SAVE10", 10)}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodPost, "/apply-coupon/SAVE10", cartBody(
		map[string]any{"productId": 1, "quantity": 2, "price": 1000},
	))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			UpdatedCart struct {
				TotalPrice    int64 `json:"totalPrice"`
				TotalDiscount int64 `json:"totalDiscount"`
				FinalPrice    int64 `json:"finalPrice"`
			} `json:"updatedCart"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(2000), resp.Data.UpdatedCart.TotalPrice)
	require.Equal(t, int64(200), resp.Data.UpdatedCart.TotalDiscount)
	require.Equal(t, int64(1800), resp.Data.UpdatedCart.FinalPrice)
	require.Len(t, q.consumed, 1)
}

func TestApplyInapplicableReturns422(t *testing.T) {
	coupon := cartWise("SAVE10", 10)
	coupon.MinCartValue = 100000
	q := &stubQueries{coupons: map[string]engine.Coupon{"SAVE10": coupon}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodPost, "/apply-coupon/SAVE10", cartBody(
		map[string]any{"productId": 1, "quantity": 1, "price": 1000},
	))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Empty(t, q.consumed)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "NOT_APPLICABLE", resp.Error.Code)
}

func TestApplyUnknownCodeReturns404(t *testing.T) {
	q := &stubQueries{coupons: map[string]engine.Coupon{}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodPost, "/apply-coupon/NOPE", cartBody(
		map[string]any{"productId": 1, "quantity": 1, "price": 1000},
	))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyRejectsEmptyCart(t *testing.T) {
	q := &stubQueries{coupons: map[string]engine.Coupon{"SAVE10": cartWise("SAVE10", 10)}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodPost, "/apply-coupon/SAVE10", cartBody())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteCoupon(t *testing.T) {
	q := &stubQueries{coupons: map[string]engine.Coupon{"SAVE10": cartWise("SAVE10", 10)}}
	r := newTestRouter(q)

	rec := doJSON(t, r, http.MethodDelete, "/coupons/SAVE10", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotContains(t, q.coupons, "SAVE10")

	rec = doJSON(t, r, http.MethodDelete, "/coupons/SAVE10", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
