package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
)

// Handlers exposes the order endpoints.
type Handlers struct {
	Svc      *Service
	Validate *validator.Validate
}

type createItem struct {
	BookID string `json:"bookId" validate:"required,uuid4"`
}

type createRequest struct {
	Items        []createItem `json:"items" validate:"required,min=1,dive"`
	PaymentID    string       `json:"paymentId" validate:"required"`
	DiscountCode string       `json:"discountCode"`
}

type itemResponse struct {
	BookID     string `json:"bookId"`
	AuthorID   string `json:"authorId"`
	Title      string `json:"title"`
	PriceCents int64  `json:"priceCents"`
	PaidCents  int64  `json:"paidCents"`
}

type earningsResponse struct {
	AuthorID string `json:"authorId"`
	NetCents int64  `json:"netCents"`
	PaidOut  bool   `json:"paidOut"`
}

type orderResponse struct {
	ID              string             `json:"id"`
	CustomerID      string             `json:"customerId"`
	OriginalCents   int64              `json:"originalTotalCents"`
	FinalCents      int64              `json:"totalCents"`
	DiscountCents   int64              `json:"discountCents"`
	CouponCode      string             `json:"discountCode,omitempty"`
	DiscountPercent int64              `json:"discountPercentage,omitempty"`
	PlatformCents   int64              `json:"platformEarningsCents"`
	Currency        string             `json:"currency"`
	PayPalOrderID   string             `json:"paypalOrderId"`
	PaymentStatus   string             `json:"paymentStatus"`
	CreatedAt       string             `json:"createdAt"`
	Items           []itemResponse     `json:"items"`
	Earnings        []earningsResponse `json:"earningsBreakdown,omitempty"`
}

func toResponse(o Order, includeEarnings bool) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		OriginalCents:   o.OriginalCents,
		FinalCents:      o.FinalCents,
		DiscountCents:   o.DiscountCents,
		CouponCode:      o.CouponCode,
		DiscountPercent: o.DiscountPercent,
		PlatformCents:   o.PlatformCents,
		Currency:        o.Currency,
		PayPalOrderID:   o.PayPalOrderID,
		PaymentStatus:   o.PaymentStatus,
		CreatedAt:       o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, itemResponse(it))
	}
	if includeEarnings {
		for _, e := range o.Earnings {
			resp.Earnings = append(resp.Earnings, earningsResponse{
				AuthorID: e.AuthorID,
				NetCents: e.NetCents,
				PaidOut:  e.PaidOut,
			})
		}
	}
	return resp
}

type initRequest struct {
	Items        []createItem `json:"items" validate:"required,min=1,dive"`
	DiscountCode string       `json:"discountCode"`
}

// CreatePayPal serves POST /orders/paypal: prices the cart and registers a
// matching PayPal order for the client to approve.
func (h *Handlers) CreatePayPal(w http.ResponseWriter, r *http.Request) {
	if _, ok := common.UserID(r.Context()); !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req initRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid order payload", err.Error())
		return
	}
	bookIDs := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		bookIDs = append(bookIDs, it.BookID)
	}
	intent, err := h.Svc.InitiatePayPal(r.Context(), bookIDs, req.DiscountCode)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"paypalOrderId":      intent.PayPalOrderID,
		"originalTotalCents": intent.OriginalCents,
		"discountCents":      intent.DiscountCents,
		"totalCents":         intent.TotalCents,
		"currency":           intent.Currency,
	})
}

// Create serves POST /orders: verifies the captured payment and persists the
// order.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	customerID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req createRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid order payload", err.Error())
		return
	}
	bookIDs := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		bookIDs = append(bookIDs, it.BookID)
	}
	o, err := h.Svc.Create(r.Context(), customerID, bookIDs, req.PaymentID, req.DiscountCode)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, toResponse(o, false))
}

// ListMine serves GET /orders.
func (h *Handlers) ListMine(w http.ResponseWriter, r *http.Request) {
	customerID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orders, err := h.Svc.ListForCustomer(r.Context(), customerID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o, false))
	}
	common.JSON(w, http.StatusOK, map[string]any{"orders": out})
}

// Get serves GET /orders/{orderID} for the owner or an admin.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	isAdmin := common.HasRole(r.Context(), "admin")
	o, err := h.Svc.Fetch(r.Context(), chi.URLParam(r, "orderID"), requesterID, isAdmin)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, toResponse(o, isAdmin))
}

// ListAll serves GET /admin/orders.
func (h *Handlers) ListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Svc.Ledger.ListAll(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o, true))
	}
	common.JSON(w, http.StatusOK, map[string]any{"orders": out})
}
