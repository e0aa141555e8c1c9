package promo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-promo/internal/common"
	"github.com/noah-isme/backend-promo/internal/engine"
	"github.com/noah-isme/backend-promo/internal/obs"
	"github.com/noah-isme/backend-promo/internal/store"
)

// Handler exposes coupon management and evaluation endpoints.
type Handler struct {
	Q                Querier
	Svc              *Service
	Validate         *validator.Validate
	ListDefaultLimit int
	ListMaxLimit     int
}

type couponPayload struct {
	Code               string               `json:"code" validate:"required"`
	Type               string               `json:"type" validate:"required"`
	DiscountType       string               `json:"discountType"`
	DiscountValue      int64                `json:"discountValue" validate:"gte=0"`
	MinCartValue       int64                `json:"minCartValue" validate:"gte=0"`
	MaxDiscount        *int64               `json:"maxDiscount" validate:"omitempty,gt=0"`
	ApplicableProducts []int64              `json:"applicableProducts" validate:"omitempty,dive,gt=0"`
	BuyProducts        []requirementPayload `json:"buyProducts" validate:"omitempty,dive"`
	GetProducts        []requirementPayload `json:"getProducts" validate:"omitempty,dive"`
	RepetitionLimit    int64                `json:"repetitionLimit" validate:"omitempty,gte=1"`
	ExpirationDate     *time.Time           `json:"expirationDate"`
	IsActive           *bool                `json:"isActive"`
	UsageLimit         *int32               `json:"usageLimit" validate:"omitempty,gt=0"`
}

type requirementPayload struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type cartItemPayload struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
	Price     int64 `json:"price" validate:"required,gt=0"`
}

type cartPayload struct {
	Items []cartItemPayload `json:"items" validate:"required,min=1,dive"`
}

type cartRequest struct {
	Cart cartPayload `json:"cart" validate:"required"`
}

type rankedEntry struct {
	CouponID string                `json:"couponId"`
	Code     string                `json:"code"`
	Type     engine.Type           `json:"type"`
	Discount int64                 `json:"discount"`
	Details  engine.DiscountResult `json:"details"`
}

// Create inserts a new coupon after enforcing the per-variant invariants.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon repository not configured", nil)
		return
	}
	payload, ok := h.decodeCouponPayload(w, r)
	if !ok {
		return
	}
	coupon, err := buildCoupon(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	created, err := h.Q.Create(r.Context(), coupon)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateCode) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update replaces an existing coupon identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon repository not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	payload, ok := h.decodeCouponPayload(w, r)
	if !ok {
		return
	}
	payload.Code = code
	coupon, err := buildCoupon(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	updated, err := h.Q.Update(r.Context(), coupon)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update coupon", nil)
		return
	}
	h.Svc.Invalidate(r.Context(), code)
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes a coupon by code.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon repository not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	if err := h.Q.Delete(r.Context(), code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete coupon", nil)
		return
	}
	h.Svc.Invalidate(r.Context(), code)
	w.WriteHeader(http.StatusNoContent)
}

// Get returns a single coupon by code.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	coupon, err := h.Svc.Lookup(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": coupon})
}

// List returns a paginated coupon collection.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon repository not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, h.listDefaultLimit())
	if max := h.listMaxLimit(); perPage > max {
		perPage = max
	}
	coupons, total, err := h.Q.List(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list coupons", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       coupons,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Applicable evaluates every redeemable coupon against the submitted cart
// and returns the applicable ones ordered by discount descending.
func (h *Handler) Applicable(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.decodeCart(w, r)
	if !ok {
		return
	}
	ranked, err := h.Svc.Best(r.Context(), cart)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to rank coupons", nil)
		return
	}
	entries := make([]rankedEntry, 0, len(ranked))
	for _, entry := range ranked {
		obs.IncCouponEvaluation(string(entry.Coupon.Type), "applicable")
		entries = append(entries, rankedEntry{
			CouponID: entry.Coupon.ID.String(),
			Code:     entry.Coupon.Code,
			Type:     entry.Coupon.Type,
			Discount: entry.Discount,
			Details:  entry.Result,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

// Apply folds the named coupon into the submitted cart and returns the
// annotated copy. An inapplicable coupon yields 422 with the engine's
// reason.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	cart, ok := h.decodeCart(w, r)
	if !ok {
		return
	}
	applied, result, err := h.Svc.Apply(r.Context(), code, cart)
	if err != nil {
		var appErr *engine.ApplicationError
		switch {
		case errors.As(err, &appErr):
			obs.IncCouponApplication("unknown", "rejected")
			common.JSONError(w, http.StatusUnprocessableEntity, "NOT_APPLICABLE", appErr.Error(), map[string]any{"reason": appErr.Reason})
		case errors.Is(err, store.ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to apply coupon", nil)
		}
		return
	}
	obs.IncCouponApplication(string(applied.Coupon.Type), "applied")
	obs.ObserveCouponDiscount(string(applied.Coupon.Type), applied.TotalDiscount)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"updatedCart":    applied,
		"discountResult": result,
	}})
}

func (h *Handler) decodeCouponPayload(w http.ResponseWriter, r *http.Request) (couponPayload, bool) {
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return couponPayload{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return couponPayload{}, false
		}
	}
	return payload, true
}

func (h *Handler) decodeCart(w http.ResponseWriter, r *http.Request) (engine.Cart, bool) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return engine.Cart{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return engine.Cart{}, false
		}
	}
	items := make([]engine.CartItem, 0, len(req.Cart.Items))
	for _, it := range req.Cart.Items {
		items = append(items, engine.CartItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return engine.Cart{Items: items}, true
}

func (h *Handler) listDefaultLimit() int {
	if h.ListDefaultLimit > 0 {
		return h.ListDefaultLimit
	}
	return 20
}

func (h *Handler) listMaxLimit() int {
	if h.ListMaxLimit > 0 {
		return h.ListMaxLimit
	}
	return 100
}

func buildCoupon(p couponPayload) (engine.Coupon, error) {
	code := strings.TrimSpace(p.Code)
	if code == "" {
		return engine.Coupon{}, errors.New("code is required")
	}
	t := engine.Type(strings.TrimSpace(p.Type))
	if !t.Valid() {
		return engine.Coupon{}, fmt.Errorf("invalid coupon type %q", p.Type)
	}
	kind := engine.DiscountKind(strings.TrimSpace(p.DiscountType))
	if kind == "" {
		kind = engine.KindPercentage
	}
	switch kind {
	case engine.KindPercentage, engine.KindFixedAmount:
	default:
		return engine.Coupon{}, fmt.Errorf("invalid discount type %q", p.DiscountType)
	}

	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	coupon := engine.Coupon{
		Code:          code,
		Type:          t,
		DiscountKind:  kind,
		DiscountValue: p.DiscountValue,
		MinCartValue:  p.MinCartValue,
		MaxDiscount:   p.MaxDiscount,
		ExpiresAt:     p.ExpirationDate,
		Active:        active,
		UsageLimit:    p.UsageLimit,
	}

	switch t {
	case engine.TypeCartWise:
		if len(p.ApplicableProducts) > 0 || len(p.BuyProducts) > 0 || len(p.GetProducts) > 0 {
			return engine.Coupon{}, errors.New("cart_wise coupons cannot carry product lists")
		}
		if kind != engine.KindPercentage {
			return engine.Coupon{}, errors.New("cart_wise coupons must use a percentage discount")
		}
		if p.DiscountValue < 1 || p.DiscountValue > 100 {
			return engine.Coupon{}, errors.New("cart_wise discountValue must be between 1 and 100")
		}
	case engine.TypeProductWise:
		if len(p.ApplicableProducts) == 0 {
			return engine.Coupon{}, errors.New("product_wise coupons require applicableProducts")
		}
		if len(p.BuyProducts) > 0 || len(p.GetProducts) > 0 {
			return engine.Coupon{}, errors.New("product_wise coupons cannot carry buy or get lists")
		}
		if kind == engine.KindPercentage && (p.DiscountValue < 1 || p.DiscountValue > 100) {
			return engine.Coupon{}, errors.New("percentage discountValue must be between 1 and 100")
		}
		coupon.Products = dedupe(p.ApplicableProducts)
	case engine.TypeBxGy:
		if len(p.BuyProducts) == 0 || len(p.GetProducts) == 0 {
			return engine.Coupon{}, errors.New("bxgy coupons require both buyProducts and getProducts")
		}
		buy, err := toRequirements(p.BuyProducts, "buyProducts")
		if err != nil {
			return engine.Coupon{}, err
		}
		get, err := toRequirements(p.GetProducts, "getProducts")
		if err != nil {
			return engine.Coupon{}, err
		}
		if overlap(buy, get) {
			return engine.Coupon{}, errors.New("buyProducts and getProducts must be disjoint")
		}
		coupon.BuyItems = buy
		coupon.GetItems = get
		coupon.RepetitionLimit = p.RepetitionLimit
		if coupon.RepetitionLimit < 1 {
			coupon.RepetitionLimit = 1
		}
	}
	return coupon, nil
}

func toRequirements(payload []requirementPayload, field string) ([]engine.QuantityRequirement, error) {
	seen := make(map[int64]struct{}, len(payload))
	out := make([]engine.QuantityRequirement, 0, len(payload))
	for _, entry := range payload {
		if entry.ProductID <= 0 || entry.Quantity <= 0 {
			return nil, fmt.Errorf("%s entries require a positive productId and quantity", field)
		}
		if _, dup := seen[entry.ProductID]; dup {
			return nil, fmt.Errorf("%s contains duplicate product %d", field, entry.ProductID)
		}
		seen[entry.ProductID] = struct{}{}
		out = append(out, engine.QuantityRequirement{ProductID: entry.ProductID, Quantity: entry.Quantity})
	}
	return out, nil
}

func overlap(buy, get []engine.QuantityRequirement) bool {
	ids := make(map[int64]struct{}, len(buy))
	for _, req := range buy {
		ids[req.ProductID] = struct{}{}
	}
	for _, req := range get {
		if _, ok := ids[req.ProductID]; ok {
			return true
		}
	}
	return false
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
