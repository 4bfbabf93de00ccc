// Package assets stores and serves book cover images and PDFs. Covers are
// public; PDFs require a completed purchase by the requester.
package assets

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pustaka-labs/backend-pustaka/internal/catalog"
	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/order"
)

const maxUploadBytes = 50 << 20

// Handlers implements upload and retrieval of book assets.
type Handlers struct {
	Dir      string
	Catalog  *catalog.Service
	Orders   *order.Service
	Validate *validator.Validate
	Logger   zerolog.Logger
}

func extFor(kind, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch kind {
	case "covers":
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".webp" {
			return ext, nil
		}
	case "pdfs":
		if ext == ".pdf" {
			return ext, nil
		}
	}
	return "", common.ValidationError("unsupported file type " + ext)
}

// Upload serves POST /assets/{kind} (kind: covers|pdfs) for authors. Returns
// the stored filename to reference when publishing a book.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := common.UserID(r.Context()); !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	kind := chi.URLParam(r, "kind")
	if kind != "covers" && kind != "pdfs" {
		common.RenderError(w, common.NotFoundError("unknown asset kind"))
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		common.RenderError(w, common.ValidationError("invalid multipart payload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		common.RenderError(w, common.ValidationError("file field is required"))
		return
	}
	defer file.Close()

	ext, err := extFor(kind, header.Filename)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	name := uuid.NewString() + ext
	dir := filepath.Join(h.Dir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		common.RenderError(w, err)
		return
	}
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		common.RenderError(w, err)
		return
	}
	h.Logger.Info().Str("kind", kind).Str("file", name).Msg("asset_stored")
	common.JSON(w, http.StatusCreated, map[string]any{"path": name})
}

// Cover serves GET /assets/covers/{bookID}: public, same visibility rules as
// the catalog listing.
func (h *Handlers) Cover(w http.ResponseWriter, r *http.Request) {
	book, err := h.Catalog.GetVisible(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if book.CoverPath == "" {
		common.RenderError(w, common.NotFoundError("book has no cover"))
		return
	}
	h.serveFile(w, r, "covers", book.CoverPath)
}

// BookPDF serves GET /assets/books/{bookID}. Access requires a completed
// order containing the book for the requesting customer; the purchase keeps
// the download available after the book is soft-deleted.
func (h *Handlers) BookPDF(w http.ResponseWriter, r *http.Request) {
	customerID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	bookID := chi.URLParam(r, "bookID")
	book, err := h.Catalog.GetAny(r.Context(), bookID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	owned, err := h.Orders.CanDownload(r.Context(), customerID, bookID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if !owned && book.AuthorID != customerID {
		common.RenderError(w, common.ForbiddenError("purchase required to download this book"))
		return
	}
	if book.PDFPath == "" {
		common.RenderError(w, common.NotFoundError("book has no file"))
		return
	}
	h.serveFile(w, r, "pdfs", book.PDFPath)
}

func (h *Handlers) serveFile(w http.ResponseWriter, r *http.Request, kind, name string) {
	// reject traversal attempts
	if name == "" || name != filepath.Base(name) {
		common.RenderError(w, common.NotFoundError("file not found"))
		return
	}
	path := filepath.Join(h.Dir, kind, name)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		common.RenderError(w, common.NotFoundError("file not found"))
		return
	}
	http.ServeFile(w, r, path)
}
