package authorgate

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pustaka-labs/backend-pustaka/internal/billing"
	"github.com/pustaka-labs/backend-pustaka/internal/common"
)

// Handlers exposes author payout settings, the dashboard and the admin
// block/unblock endpoints.
type Handlers struct {
	Svc       *Service
	Billing   *billing.Service
	Validate  *validator.Validate
	TrialDays int
}

func settingsPayload(st Settings) map[string]any {
	out := map[string]any{
		"payoutPaypalEmail": st.PayoutPayPalEmail,
		"isBlocked":         st.IsBlocked,
		"joinedAt":          st.JoinedAt,
		"trialEndsAt":       st.TrialEndsAt,
	}
	if st.IsBlocked {
		out["blockedReason"] = st.BlockedReason
		out["blockedAt"] = st.BlockedAt
	}
	return out
}

// GetSettings serves GET /authors/me/settings. Fetching settings reconciles
// book visibility as a side effect.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	authorID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	st, err := h.Svc.GetSettings(r.Context(), authorID, h.TrialDays)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, settingsPayload(st))
}

type updateSettingsRequest struct {
	PayoutPaypalEmail string `json:"payoutPaypalEmail" validate:"omitempty,email"`
}

// UpdateSettings serves PUT /authors/me/settings. An empty email clears the
// payout destination and pends the author's approved books.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	authorID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req updateSettingsRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payout email", err.Error())
		return
	}
	if err := h.Svc.UpdatePayoutEmail(r.Context(), authorID, req.PayoutPaypalEmail); err != nil {
		common.RenderError(w, err)
		return
	}
	st, err := h.Svc.GetSettings(r.Context(), authorID, h.TrialDays)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, settingsPayload(st))
}

// Dashboard serves GET /authors/me/dashboard: payout settings plus the
// current billing cycle. Fetching it reconciles book visibility.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	authorID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	st, err := h.Svc.GetSettings(r.Context(), authorID, h.TrialDays)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	row, err := h.Billing.CurrentForAuthor(r.Context(), authorID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"settings": settingsPayload(st),
		"currentCycle": map[string]any{
			"periodKey":       row.Period.Key,
			"start":           row.Period.Start,
			"end":             row.Period.End,
			"dueDate":         row.Period.DueDate,
			"grossSalesCents": row.GrossSales,
			"feeDueCents":     row.FeeDue,
			"salesCount":      row.SalesCount,
			"isPaid":          row.IsPaid,
			"isOverdue":       row.IsOverdue,
			"state":           row.State,
		},
	})
}

type blockRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Block serves POST /admin/authors/{authorID}/block.
func (h *Handlers) Block(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "a block reason is required", err.Error())
		return
	}
	if err := h.Svc.Block(r.Context(), chi.URLParam(r, "authorID"), req.Reason); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"blocked": true})
}

// Unblock serves POST /admin/authors/{authorID}/unblock.
func (h *Handlers) Unblock(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Unblock(r.Context(), chi.URLParam(r, "authorID")); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"blocked": false})
}
