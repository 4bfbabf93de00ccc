package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
)

// Handlers exposes the public and author-facing book endpoints.
type Handlers struct {
	Svc           *Service
	Store         *Store
	Validate      *validator.Validate
	PublicBaseURL string
}

// BookResponse is the external JSON shape of a book.
type BookResponse struct {
	ID          string `json:"id"`
	AuthorID    string `json:"authorId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
	Status      string `json:"status"`
	SalesCount  int64  `json:"salesCount"`
	CoverURL    string `json:"coverUrl,omitempty"`
}

func (h *Handlers) toResponse(b Book) BookResponse {
	resp := BookResponse{
		ID:          b.ID,
		AuthorID:    b.AuthorID,
		Title:       b.Title,
		Description: b.Description,
		PriceCents:  b.PriceCents,
		Status:      b.Status,
		SalesCount:  b.SalesCount,
	}
	if b.CoverPath != "" {
		resp.CoverURL = h.PublicBaseURL + "/api/v1/assets/covers/" + b.ID
	}
	return resp
}

// List serves GET /books.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	books, err := h.Store.ListPublic(r.Context(), limit, offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, h.toResponse(b))
	}
	common.JSON(w, http.StatusOK, map[string]any{"books": out})
}

// Get serves GET /books/{bookID}. Same visibility rules as the listing.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.Svc.GetVisible(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, h.toResponse(b))
}

type publishRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=300"`
	Description string `json:"description" validate:"max=5000"`
	PriceCents  int64  `json:"priceCents" validate:"gte=0"`
	CoverPath   string `json:"coverPath"`
	PDFPath     string `json:"pdfPath"`
}

// Publish serves POST /books for authenticated authors.
func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	authorID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req publishRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RenderError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid book payload", err.Error())
		return
	}
	b, err := h.Svc.Publish(r.Context(), authorID, req.Title, req.Description, req.PriceCents, req.CoverPath, req.PDFPath)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, h.toResponse(b))
}

// Delete serves DELETE /books/{bookID} for the owning author.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	authorID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	if err := h.Svc.Remove(r.Context(), chi.URLParam(r, "bookID"), authorID); err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// Mine serves GET /authors/me/books.
func (h *Handlers) Mine(w http.ResponseWriter, r *http.Request) {
	authorID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	books, err := h.Store.ListByAuthor(r.Context(), authorID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, h.toResponse(b))
	}
	common.JSON(w, http.StatusOK, map[string]any{"books": out})
}
