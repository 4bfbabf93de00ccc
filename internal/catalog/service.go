package catalog

import (
	"context"
	"errors"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/pricing"
)

// Querier is the storage surface the catalog service needs.
type Querier interface {
	Get(ctx context.Context, id string) (Book, error)
	GetVisible(ctx context.Context, id string) (Book, error)
	GetAny(ctx context.Context, id string) (Book, error)
	ListByIDs(ctx context.Context, ids []string) ([]Book, error)
	ListPublic(ctx context.Context, limit, offset int) ([]Book, error)
	ListByAuthor(ctx context.Context, authorID string) ([]Book, error)
	Create(ctx context.Context, b Book) (Book, error)
	SoftDelete(ctx context.Context, id, authorID string) error
}

// Service implements catalog operations over a Querier.
type Service struct {
	Q Querier
	// HasPayoutEmail reports whether an author has configured a payout
	// destination; new books by configured authors are auto-approved.
	HasPayoutEmail func(ctx context.Context, authorID string) (bool, error)
}

var errNotConfigured = errors.New("catalog: service not configured")

// Publish creates a book for the author. Authors with a payout email get
// their books approved immediately; others start pending.
func (s *Service) Publish(ctx context.Context, authorID, title, description string, priceCents int64, coverPath, pdfPath string) (Book, error) {
	if s == nil || s.Q == nil {
		return Book{}, errNotConfigured
	}
	if title == "" {
		return Book{}, common.ValidationError("title is required")
	}
	if priceCents < 0 {
		return Book{}, common.ValidationError("price must be non-negative")
	}
	status := StatusPending
	if s.HasPayoutEmail != nil {
		configured, err := s.HasPayoutEmail(ctx, authorID)
		if err != nil {
			return Book{}, err
		}
		if configured {
			status = StatusApproved
		}
	}
	return s.Q.Create(ctx, Book{
		AuthorID:    authorID,
		Title:       title,
		Description: description,
		PriceCents:  priceCents,
		Status:      status,
		CoverPath:   coverPath,
		PDFPath:     pdfPath,
	})
}

// Items resolves book IDs into pricing items, preserving multiplicity.
func (s *Service) Items(ctx context.Context, ids []string) ([]pricing.Item, error) {
	if s == nil || s.Q == nil {
		return nil, errNotConfigured
	}
	books, err := s.Q.ListByIDs(ctx, ids)
	if errors.Is(err, ErrBookNotFound) {
		return nil, common.NotFoundError("one or more books not available")
	}
	if err != nil {
		return nil, err
	}
	items := make([]pricing.Item, 0, len(books))
	for _, b := range books {
		items = append(items, pricing.Item{
			BookID:   b.ID,
			AuthorID: b.AuthorID,
			Title:    b.Title,
			Price:    b.PriceCents,
		})
	}
	return items, nil
}

// Get fetches one book.
func (s *Service) Get(ctx context.Context, id string) (Book, error) {
	if s == nil || s.Q == nil {
		return Book{}, errNotConfigured
	}
	b, err := s.Q.Get(ctx, id)
	if errors.Is(err, ErrBookNotFound) {
		return Book{}, common.NotFoundError("book not found")
	}
	return b, err
}

// GetVisible fetches one publicly visible book. Pending, rejected and deleted
// books, and every book by a blocked author, stay hidden.
func (s *Service) GetVisible(ctx context.Context, id string) (Book, error) {
	if s == nil || s.Q == nil {
		return Book{}, errNotConfigured
	}
	b, err := s.Q.GetVisible(ctx, id)
	if errors.Is(err, ErrBookNotFound) {
		return Book{}, common.NotFoundError("book not found")
	}
	return b, err
}

// GetAny fetches one book regardless of soft-delete. Callers must gate access
// before serving its content.
func (s *Service) GetAny(ctx context.Context, id string) (Book, error) {
	if s == nil || s.Q == nil {
		return Book{}, errNotConfigured
	}
	b, err := s.Q.GetAny(ctx, id)
	if errors.Is(err, ErrBookNotFound) {
		return Book{}, common.NotFoundError("book not found")
	}
	return b, err
}

// Remove soft-deletes a book owned by authorID.
func (s *Service) Remove(ctx context.Context, id, authorID string) error {
	if s == nil || s.Q == nil {
		return errNotConfigured
	}
	err := s.Q.SoftDelete(ctx, id, authorID)
	if errors.Is(err, ErrBookNotFound) {
		return common.NotFoundError("book not found")
	}
	return err
}
