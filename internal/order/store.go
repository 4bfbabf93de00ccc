package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pustaka-labs/backend-pustaka/internal/db"
)

// ErrNotFound indicates a missing order.
var ErrNotFound = errors.New("order: not found")

// ErrDuplicatePayment indicates the payment identifier was already consumed.
var ErrDuplicatePayment = errors.New("order: payment already recorded")

// Item is one purchased line.
type Item struct {
	BookID     string
	AuthorID   string
	Title      string
	PriceCents int64
	PaidCents  int64
}

// Order is an immutable purchase record.
type Order struct {
	ID              string
	CustomerID      string
	OriginalCents   int64
	FinalCents      int64
	DiscountCents   int64
	CouponCode      string
	DiscountPercent int64
	PlatformCents   int64
	Currency        string
	PayPalOrderID   string
	PaymentStatus   string
	CreatedAt       time.Time
	Items           []Item
	Earnings        []EarningsEntry
}

// Store provides pgx-backed access to the order ledger.
type Store struct {
	Pool *pgxpool.Pool
}

// Create persists the order, its items and earnings rows, and bumps each
// purchased book's sales counter, all in one transaction.
func (s *Store) Create(ctx context.Context, o Order) (Order, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE paypal_order_id = $1)`, o.PayPalOrderID).Scan(&exists); err != nil {
		return Order{}, err
	}
	if exists {
		return Order{}, ErrDuplicatePayment
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (customer_id, original_total_cents, final_total_cents, discount_cents,
		                    coupon_code, discount_percent, platform_cents, currency, paypal_order_id, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'completed')
		RETURNING id, created_at`,
		db.ToUUID(o.CustomerID), o.OriginalCents, o.FinalCents, o.DiscountCents,
		o.CouponCode, o.DiscountPercent, o.PlatformCents, o.Currency, o.PayPalOrderID,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	o.PaymentStatus = "completed"

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, book_id, author_id, title, price_cents, paid_cents)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			db.ToUUID(o.ID), db.ToUUID(it.BookID), db.ToUUID(it.AuthorID), it.Title, it.PriceCents, it.PaidCents); err != nil {
			return Order{}, err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE books SET sales_count = sales_count + 1, updated_at = now() WHERE id = $1`,
			db.ToUUID(it.BookID)); err != nil {
			return Order{}, err
		}
	}
	for _, e := range o.Earnings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_earnings (order_id, author_id, share_cents, fee_cents, net_cents, paid_out)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			db.ToUUID(o.ID), db.ToUUID(e.AuthorID), e.ShareCents, e.FeeCents, e.NetCents, e.PaidOut); err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

const orderColumns = `id, customer_id, original_total_cents, final_total_cents, discount_cents,
	coupon_code, discount_percent, platform_cents, currency, paypal_order_id, payment_status, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.OriginalCents, &o.FinalCents, &o.DiscountCents,
		&o.CouponCode, &o.DiscountPercent, &o.PlatformCents, &o.Currency,
		&o.PayPalOrderID, &o.PaymentStatus, &o.CreatedAt)
	return o, err
}

// Get fetches one order with its items and earnings.
func (s *Store) Get(ctx context.Context, id string) (Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, db.ToUUID(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if o.Items, err = s.itemsFor(ctx, o.ID); err != nil {
		return Order{}, err
	}
	if o.Earnings, err = s.earningsFor(ctx, o.ID); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *Store) itemsFor(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT book_id, author_id, title, price_cents, paid_cents FROM order_items WHERE order_id = $1`,
		db.ToUUID(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.BookID, &it.AuthorID, &it.Title, &it.PriceCents, &it.PaidCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) earningsFor(ctx context.Context, orderID string) ([]EarningsEntry, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT author_id, share_cents, fee_cents, net_cents, paid_out FROM order_earnings WHERE order_id = $1`,
		db.ToUUID(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EarningsEntry
	for rows.Next() {
		var e EarningsEntry
		if err := rows.Scan(&e.AuthorID, &e.ShareCents, &e.FeeCents, &e.NetCents, &e.PaidOut); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListByCustomer returns a customer's orders, newest first. Items for books
// soft-deleted afterwards remain resolvable.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`,
		db.ToUUID(customerID))
}

// ListAll returns every order, newest first.
func (s *Store) ListAll(ctx context.Context) ([]Order, error) {
	return s.list(ctx, `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Items, err = s.itemsFor(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// HasPurchased reports whether the customer owns a completed order containing
// the book. This is the sole access gate for paid content.
func (s *Store) HasPurchased(ctx context.Context, customerID, bookID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders o
			JOIN order_items i ON i.order_id = o.id
			WHERE o.customer_id = $1 AND o.payment_status = 'completed' AND i.book_id = $2
		)`, db.ToUUID(customerID), db.ToUUID(bookID)).Scan(&exists)
	return exists, err
}

// AuthorEarning is a billing-facing earnings row.
type AuthorEarning struct {
	OrderID   string
	NetCents  int64
	CreatedAt time.Time
}

// EarningsForAuthor returns an author's earnings rows for completed orders
// created within [from, to).
func (s *Store) EarningsForAuthor(ctx context.Context, authorID string, from, to time.Time) ([]AuthorEarning, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT e.order_id, e.net_cents, o.created_at
		FROM order_earnings e
		JOIN orders o ON o.id = e.order_id
		WHERE e.author_id = $1 AND o.payment_status = 'completed'
		  AND o.created_at >= $2 AND o.created_at < $3
		ORDER BY o.created_at`,
		db.ToUUID(authorID), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuthorEarning
	for rows.Next() {
		var e AuthorEarning
		if err := rows.Scan(&e.OrderID, &e.NetCents, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SellingAuthorIDs returns the distinct authors with any completed sales in
// [from, to).
func (s *Store) SellingAuthorIDs(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT DISTINCT e.author_id
		FROM order_earnings e
		JOIN orders o ON o.id = e.order_id
		WHERE o.payment_status = 'completed' AND o.created_at >= $1 AND o.created_at < $2`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
