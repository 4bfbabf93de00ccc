package coupon

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
)

// Handlers exposes coupon preview and admin management endpoints.
type Handlers struct {
	Svc      *Service
	Validate *validator.Validate
}

type applyRequest struct {
	Code    string   `json:"code" validate:"required,min=1,max=64"`
	BookIDs []string `json:"bookIds" validate:"required,min=1,dive,uuid4"`
}

type discountedItem struct {
	BookID          string `json:"bookId"`
	Title           string `json:"title"`
	OriginalCents   int64  `json:"originalCents"`
	DiscountedCents int64  `json:"discountedCents"`
	Discounted      bool   `json:"discounted"`
}

// Apply serves POST /coupons/apply: a read-only pricing preview.
func (h *Handlers) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request", err.Error())
		return
	}
	quote, rule, err := h.Svc.Price(r.Context(), req.Code, req.BookIDs)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	items := make([]discountedItem, 0, len(quote.Lines))
	for _, l := range quote.Lines {
		items = append(items, discountedItem{
			BookID:          l.BookID,
			Title:           l.Title,
			OriginalCents:   l.Price,
			DiscountedCents: l.Paid,
			Discounted:      l.Discounted,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"discountCode":       rule.Code,
		"discountPercentage": rule.Percent,
		"discountCents":      quote.Discount,
		"originalTotalCents": quote.OriginalTotal,
		"newTotalCents":      quote.FinalTotal,
		"discountedItems":    items,
	})
}

type createRequest struct {
	Code      string     `json:"code" validate:"required,min=1,max=64"`
	Percent   int64      `json:"percent" validate:"required,gte=1,lte=100"`
	Scope     string     `json:"scope" validate:"required,oneof=all author"`
	AuthorID  string     `json:"authorId" validate:"omitempty,uuid4"`
	Active    bool       `json:"active"`
	ValidFrom *time.Time `json:"validFrom"`
	ValidTo   *time.Time `json:"validTo"`
}

// Create serves POST /admin/coupons.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid coupon payload", err.Error())
		return
	}
	m := Model{
		Code:     req.Code,
		Percent:  req.Percent,
		Scope:    req.Scope,
		AuthorID: req.AuthorID,
		Active:   req.Active,
	}
	if req.ValidFrom != nil {
		m.ValidFrom = *req.ValidFrom
	}
	if req.ValidTo != nil {
		m.ValidTo = *req.ValidTo
	}
	created, err := h.Svc.CreateCoupon(r.Context(), m)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, created)
}

// List serves GET /admin/coupons.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Svc.Q.List(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"coupons": coupons})
}

type updateRequest struct {
	Active bool `json:"active"`
}

// Update serves PUT /admin/coupons/{code}.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req updateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Svc.Q.SetActive(r.Context(), code, req.Active); err != nil {
		if err == ErrNotFound {
			common.RenderError(w, common.NotFoundError("coupon not found"))
			return
		}
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"code": NormalizeCode(code), "active": req.Active})
}
