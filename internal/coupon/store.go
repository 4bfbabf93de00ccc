package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pustaka-labs/backend-pustaka/internal/db"
)

// ErrNotFound indicates no coupon matches the given code.
var ErrNotFound = errors.New("coupon: not found")

// Model is the persisted coupon record.
type Model struct {
	ID        string
	Code      string
	Percent   int64
	Scope     string
	AuthorID  string
	Active    bool
	ValidFrom time.Time
	ValidTo   time.Time
	CreatedAt time.Time
}

// RuleFromModel projects a stored coupon into its validation view.
func RuleFromModel(m Model) Rule {
	return Rule{
		Code:      m.Code,
		Percent:   m.Percent,
		Scope:     m.Scope,
		AuthorID:  m.AuthorID,
		Active:    m.Active,
		ValidFrom: m.ValidFrom,
		ValidTo:   m.ValidTo,
	}
}

// Store provides pgx-backed access to the coupons table.
type Store struct {
	Pool *pgxpool.Pool
}

const couponColumns = `id, code, percent, scope, author_id, active, valid_from, valid_to, created_at`

func scanCoupon(row pgx.Row) (Model, error) {
	var (
		m         Model
		authorID  pgtype.UUID
		validFrom pgtype.Timestamptz
		validTo   pgtype.Timestamptz
	)
	err := row.Scan(&m.ID, &m.Code, &m.Percent, &m.Scope, &authorID, &m.Active, &validFrom, &validTo, &m.CreatedAt)
	if err != nil {
		return Model{}, err
	}
	m.AuthorID = db.UUIDString(authorID)
	m.ValidFrom = db.TimeOrZero(validFrom)
	m.ValidTo = db.TimeOrZero(validTo)
	return m, nil
}

// GetByCode fetches a coupon by normalized code.
func (s *Store) GetByCode(ctx context.Context, code string) (Model, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1`, NormalizeCode(code))
	m, err := scanCoupon(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Model{}, ErrNotFound
	}
	return m, err
}

// Create inserts a new coupon.
func (s *Store) Create(ctx context.Context, m Model) (Model, error) {
	var authorID pgtype.UUID
	if m.AuthorID != "" {
		authorID = db.ToUUID(m.AuthorID)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO coupons (code, percent, scope, author_id, active, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+couponColumns,
		NormalizeCode(m.Code), m.Percent, m.Scope, authorID, m.Active,
		db.Timestamptz(m.ValidFrom), db.Timestamptz(m.ValidTo))
	return scanCoupon(row)
}

// List returns all coupons, newest first.
func (s *Store) List(ctx context.Context) ([]Model, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Model
	for rows.Next() {
		m, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetActive toggles a coupon's active flag.
func (s *Store) SetActive(ctx context.Context, code string, active bool) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE coupons SET active = $2 WHERE code = $1`, NormalizeCode(code), active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
