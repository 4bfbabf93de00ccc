package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pustaka-labs/backend-pustaka/internal/db"
)

// Book is a catalog entry. Prices are in cents.
type Book struct {
	ID          string
	AuthorID    string
	Title       string
	Description string
	PriceCents  int64
	Status      string
	SalesCount  int64
	CoverPath   string
	PDFPath     string
	IsDeleted   bool
}

// Publish status values.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ErrBookNotFound indicates a missing or deleted book.
var ErrBookNotFound = errors.New("catalog: book not found")

// Store provides pgx-backed access to the books table.
type Store struct {
	Pool *pgxpool.Pool
}

const bookColumns = `id, author_id, title, description, price_cents, status, sales_count, cover_path, pdf_path, is_deleted`

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.AuthorID, &b.Title, &b.Description, &b.PriceCents,
		&b.Status, &b.SalesCount, &b.CoverPath, &b.PDFPath, &b.IsDeleted)
	return b, err
}

// Get fetches a single non-deleted book.
func (s *Store) Get(ctx context.Context, id string) (Book, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1 AND NOT is_deleted`, db.ToUUID(id))
	b, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Book{}, ErrBookNotFound
	}
	return b, err
}

// GetVisible fetches a single book through the public visibility filter:
// approved, not deleted, and not by a blocked author.
func (s *Store) GetVisible(ctx context.Context, id string) (Book, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT b.id, b.author_id, b.title, b.description, b.price_cents, b.status,
		       b.sales_count, b.cover_path, b.pdf_path, b.is_deleted
		FROM books b
		JOIN users u ON u.id = b.author_id
		WHERE b.id = $1 AND b.status = 'approved' AND NOT b.is_deleted AND NOT u.is_blocked`,
		db.ToUUID(id))
	b, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Book{}, ErrBookNotFound
	}
	return b, err
}

// GetAny fetches a book even after soft-delete. Purchased content must stay
// resolvable so customers keep their downloads.
func (s *Store) GetAny(ctx context.Context, id string) (Book, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`, db.ToUUID(id))
	b, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Book{}, ErrBookNotFound
	}
	return b, err
}

// ListByIDs fetches non-deleted books preserving the order and multiplicity of
// the requested IDs. A missing ID yields ErrBookNotFound.
func (s *Store) ListByIDs(ctx context.Context, ids []string) ([]Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	unique := make(map[string]struct{}, len(ids))
	var query []string
	for _, id := range ids {
		if _, seen := unique[id]; !seen {
			unique[id] = struct{}{}
			query = append(query, id)
		}
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ANY($1::uuid[]) AND NOT is_deleted`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]Book, len(query))
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		byID[b.ID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Book, 0, len(ids))
	for _, id := range ids {
		b, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
		}
		out = append(out, b)
	}
	return out, nil
}

// ListPublic returns approved, non-deleted books whose authors are not blocked.
func (s *Store) ListPublic(ctx context.Context, limit, offset int) ([]Book, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT b.id, b.author_id, b.title, b.description, b.price_cents, b.status,
		       b.sales_count, b.cover_path, b.pdf_path, b.is_deleted
		FROM books b
		JOIN users u ON u.id = b.author_id
		WHERE b.status = 'approved' AND NOT b.is_deleted AND NOT u.is_blocked
		ORDER BY b.created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

// ListByAuthor returns all non-deleted books by the given author.
func (s *Store) ListByAuthor(ctx context.Context, authorID string) ([]Book, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books WHERE author_id = $1 AND NOT is_deleted ORDER BY created_at DESC`,
		db.ToUUID(authorID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

func collectBooks(rows pgx.Rows) ([]Book, error) {
	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Create inserts a new book owned by authorID.
func (s *Store) Create(ctx context.Context, b Book) (Book, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO books (author_id, title, description, price_cents, status, cover_path, pdf_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+bookColumns,
		db.ToUUID(b.AuthorID), b.Title, b.Description, b.PriceCents, b.Status, b.CoverPath, b.PDFPath)
	return scanBook(row)
}

// SoftDelete marks a book deleted without removing it, keeping historical
// orders resolvable.
func (s *Store) SoftDelete(ctx context.Context, id, authorID string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE books SET is_deleted = TRUE, updated_at = now() WHERE id = $1 AND author_id = $2 AND NOT is_deleted`,
		db.ToUUID(id), db.ToUUID(authorID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

// SetStatus updates a book's publish status.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE books SET status = $2, updated_at = now() WHERE id = $1 AND NOT is_deleted`,
		db.ToUUID(id), status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

// ShiftAuthorStatus flips the publish status of all of an author's books from
// one state to another, returning the number of books updated.
func (s *Store) ShiftAuthorStatus(ctx context.Context, authorID, from, to string) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE books SET status = $3, updated_at = now() WHERE author_id = $1 AND status = $2 AND NOT is_deleted`,
		db.ToUUID(authorID), from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
