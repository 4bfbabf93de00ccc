package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/notify"
)

// Handlers exposes the admin fee endpoints.
type Handlers struct {
	Svc      *Service
	Mail     *notify.Mailer
	Validate *validator.Validate
}

type rowResponse struct {
	AuthorID        string `json:"authorId"`
	AuthorEmail     string `json:"authorEmail"`
	AuthorName      string `json:"authorName"`
	GrossSalesCents int64  `json:"grossSalesCents"`
	FeeDueCents     int64  `json:"platformFeeDueCents"`
	SalesCount      int    `json:"salesCount"`
	IsPaid          bool   `json:"isPaid"`
	PaidAt          string `json:"paidAt,omitempty"`
	Note            string `json:"note,omitempty"`
	IsOverdue       bool   `json:"isOverdue"`
	State           string `json:"state"`
}

func toRowResponse(r Row) rowResponse {
	resp := rowResponse{
		AuthorID:        r.Author.ID,
		AuthorEmail:     r.Author.Email,
		AuthorName:      r.Author.DisplayName,
		GrossSalesCents: r.GrossSales,
		FeeDueCents:     r.FeeDue,
		SalesCount:      r.SalesCount,
		IsPaid:          r.IsPaid,
		Note:            r.Note,
		IsOverdue:       r.IsOverdue,
		State:           r.State,
	}
	if !r.PaidAt.IsZero() {
		resp.PaidAt = r.PaidAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// Status serves GET /admin/fees?period=<key>.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("period")
	if key == "" {
		common.RenderError(w, common.ValidationError("period query parameter is required"))
		return
	}
	rows, period, err := h.Svc.StatusForPeriod(r.Context(), key)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	out := make([]rowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRowResponse(row))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"period":  period.Key,
		"start":   period.Start.Format("2006-01-02"),
		"end":     period.End.Format("2006-01-02"),
		"dueDate": period.DueDate.Format("2006-01-02"),
		"authors": out,
	})
}

type markRequest struct {
	Note string `json:"note" validate:"max=500"`
}

func (h *Handlers) mark(w http.ResponseWriter, r *http.Request, paid bool) {
	authorID := chi.URLParam(r, "authorID")
	periodKey := chi.URLParam(r, "periodKey")
	var req markRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.RenderError(w, err)
			return
		}
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request", err.Error())
			return
		}
	}
	var (
		rec FeeRecord
		err error
	)
	if paid {
		rec, err = h.Svc.MarkPaid(r.Context(), authorID, periodKey, req.Note)
	} else {
		rec, err = h.Svc.MarkUnpaid(r.Context(), authorID, periodKey, req.Note)
	}
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"authorId":  rec.AuthorID,
		"periodKey": rec.PeriodKey,
		"isPaid":    rec.IsPaid,
		"note":      rec.Note,
	})
}

// MarkPaid serves POST /admin/fees/{authorID}/{periodKey}/mark-paid.
func (h *Handlers) MarkPaid(w http.ResponseWriter, r *http.Request) { h.mark(w, r, true) }

// MarkUnpaid serves POST /admin/fees/{authorID}/{periodKey}/mark-unpaid.
func (h *Handlers) MarkUnpaid(w http.ResponseWriter, r *http.Request) { h.mark(w, r, false) }

type remindRequest struct {
	PeriodKey string `json:"periodKey" validate:"required"`
}

// Remind serves POST /admin/fees/remind: queues an overdue-fee email to every
// author still owing for the period.
func (h *Handlers) Remind(w http.ResponseWriter, r *http.Request) {
	var req remindRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request", err.Error())
		return
	}
	rows, period, err := h.Svc.StatusForPeriod(r.Context(), req.PeriodKey)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	reminded := 0
	for _, row := range rows {
		if row.IsPaid || !row.IsOverdue || row.FeeDue <= 0 {
			continue
		}
		h.Mail.EnqueueFeeReminder(r.Context(), row.Author.Email, period.Key, row.FeeDue)
		reminded++
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"periodKey": period.Key,
		"reminded":  reminded,
	})
}
