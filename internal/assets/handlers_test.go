package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pustaka-labs/backend-pustaka/internal/catalog"
	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/order"
)

type fakeBooks struct {
	books map[string]catalog.Book
}

func (f *fakeBooks) Get(_ context.Context, id string) (catalog.Book, error) {
	b, ok := f.books[id]
	if !ok || b.IsDeleted {
		return catalog.Book{}, catalog.ErrBookNotFound
	}
	return b, nil
}

func (f *fakeBooks) GetVisible(_ context.Context, id string) (catalog.Book, error) {
	b, ok := f.books[id]
	if !ok || b.IsDeleted || b.Status != catalog.StatusApproved {
		return catalog.Book{}, catalog.ErrBookNotFound
	}
	return b, nil
}

func (f *fakeBooks) GetAny(_ context.Context, id string) (catalog.Book, error) {
	b, ok := f.books[id]
	if !ok {
		return catalog.Book{}, catalog.ErrBookNotFound
	}
	return b, nil
}

func (f *fakeBooks) ListByIDs(context.Context, []string) ([]catalog.Book, error) { return nil, nil }
func (f *fakeBooks) ListPublic(context.Context, int, int) ([]catalog.Book, error) {
	return nil, nil
}
func (f *fakeBooks) ListByAuthor(context.Context, string) ([]catalog.Book, error) {
	return nil, nil
}
func (f *fakeBooks) Create(_ context.Context, b catalog.Book) (catalog.Book, error) { return b, nil }
func (f *fakeBooks) SoftDelete(context.Context, string, string) error               { return nil }

type fakeLedger struct {
	purchased map[string]bool
}

func (f *fakeLedger) Create(_ context.Context, o order.Order) (order.Order, error) { return o, nil }
func (f *fakeLedger) Get(context.Context, string) (order.Order, error) {
	return order.Order{}, order.ErrNotFound
}
func (f *fakeLedger) ListByCustomer(context.Context, string) ([]order.Order, error) {
	return nil, nil
}
func (f *fakeLedger) ListAll(context.Context) ([]order.Order, error) { return nil, nil }
func (f *fakeLedger) HasPurchased(_ context.Context, customerID, bookID string) (bool, error) {
	return f.purchased[customerID+"/"+bookID], nil
}

func newAssetRouter(t *testing.T, books *fakeBooks, ledger *fakeLedger) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	h := &Handlers{
		Dir:     dir,
		Catalog: &catalog.Service{Q: books},
		Orders:  &order.Service{Ledger: ledger},
		Logger:  zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Get("/assets/covers/{bookID}", h.Cover)
	r.Get("/assets/books/{bookID}", h.BookPDF)
	return r, dir
}

func writePDF(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pdfs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pdfs", name), []byte("%PDF-1.4"), 0o644))
}

func getAsset(router http.Handler, path, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userID != "" {
		req = req.WithContext(common.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBookPDFSurvivesSoftDelete(t *testing.T) {
	books := &fakeBooks{books: map[string]catalog.Book{
		"b1": {ID: "b1", AuthorID: "author-1", Status: catalog.StatusApproved,
			PDFPath: "b1.pdf", IsDeleted: true},
	}}
	ledger := &fakeLedger{purchased: map[string]bool{"cust-1/b1": true}}
	router, dir := newAssetRouter(t, books, ledger)
	writePDF(t, dir, "b1.pdf")

	rec := getAsset(router, "/assets/books/b1", "cust-1")
	require.Equal(t, http.StatusOK, rec.Code, "completed purchase keeps the download after soft-delete")
	require.Equal(t, "%PDF-1.4", rec.Body.String())
}

func TestBookPDFRequiresPurchase(t *testing.T) {
	books := &fakeBooks{books: map[string]catalog.Book{
		"b1": {ID: "b1", AuthorID: "author-1", Status: catalog.StatusApproved, PDFPath: "b1.pdf"},
	}}
	router, dir := newAssetRouter(t, books, &fakeLedger{})
	writePDF(t, dir, "b1.pdf")

	rec := getAsset(router, "/assets/books/b1", "cust-2")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = getAsset(router, "/assets/books/b1", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookPDFAllowsOwningAuthor(t *testing.T) {
	books := &fakeBooks{books: map[string]catalog.Book{
		"b1": {ID: "b1", AuthorID: "author-1", Status: catalog.StatusPending, PDFPath: "b1.pdf"},
	}}
	router, dir := newAssetRouter(t, books, &fakeLedger{})
	writePDF(t, dir, "b1.pdf")

	rec := getAsset(router, "/assets/books/b1", "author-1")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCoverHiddenForUnapprovedBook(t *testing.T) {
	books := &fakeBooks{books: map[string]catalog.Book{
		"b1": {ID: "b1", AuthorID: "author-1", Status: catalog.StatusPending, CoverPath: "b1.jpg"},
	}}
	router, _ := newAssetRouter(t, books, &fakeLedger{})

	rec := getAsset(router, "/assets/covers/b1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
