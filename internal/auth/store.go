package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pustaka-labs/backend-pustaka/internal/db"
)

// User is a registered account. Roles are customer, author, admin.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	DisplayName      string
	Roles            []string
	PayoutPayPalEmail string
	IsBlocked        bool
	BlockedReason    string
	BlockedAt        time.Time
	CreatedAt        time.Time
}

// HasRole reports whether the user carries the role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var (
	// ErrUserNotFound indicates no matching account.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrEmailTaken indicates a duplicate registration.
	ErrEmailTaken = errors.New("auth: email already registered")
)

// Store provides pgx-backed access to users and sessions.
type Store struct {
	Pool *pgxpool.Pool
}

const userColumns = `id, email, password_hash, display_name, roles, payout_paypal_email,
	is_blocked, blocked_reason, blocked_at, created_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u         User
		blockedAt pgtype.Timestamptz
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Roles,
		&u.PayoutPayPalEmail, &u.IsBlocked, &u.BlockedReason, &blockedAt, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	u.BlockedAt = db.TimeOrZero(blockedAt)
	return u, nil
}

// Create inserts a new user.
func (s *Store) Create(ctx context.Context, email, passwordHash, displayName string, roles []string) (User, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, display_name, roles)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
		RETURNING `+userColumns,
		email, passwordHash, displayName, roles)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrEmailTaken
	}
	return u, err
}

// GetByEmail fetches a user by email.
func (s *Store) GetByEmail(ctx context.Context, email string) (User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, db.ToUUID(id))
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// SetPayoutEmail updates the author's payout destination.
func (s *Store) SetPayoutEmail(ctx context.Context, id, email string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE users SET payout_paypal_email = $2, updated_at = now() WHERE id = $1`,
		db.ToUUID(id), email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetBlocked flips the admin block flag.
func (s *Store) SetBlocked(ctx context.Context, id string, blocked bool, reason string) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if blocked {
		tag, err = s.Pool.Exec(ctx, `
			UPDATE users SET is_blocked = TRUE, blocked_reason = $2, blocked_at = now(), updated_at = now()
			WHERE id = $1`, db.ToUUID(id), reason)
	} else {
		tag, err = s.Pool.Exec(ctx, `
			UPDATE users SET is_blocked = FALSE, blocked_reason = '', blocked_at = NULL, updated_at = now()
			WHERE id = $1`, db.ToUUID(id))
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateSession stores a refresh token.
func (s *Store) CreateSession(ctx context.Context, userID, refreshToken string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO sessions (user_id, refresh_token, expires_at) VALUES ($1, $2, $3)`,
		db.ToUUID(userID), refreshToken, expiresAt)
	return err
}

// ConsumeSession deletes and returns the session's user if the token is valid
// and unexpired.
func (s *Store) ConsumeSession(ctx context.Context, refreshToken string) (string, error) {
	var userID string
	err := s.Pool.QueryRow(ctx, `
		DELETE FROM sessions WHERE refresh_token = $1 AND expires_at > now()
		RETURNING user_id`, refreshToken).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return userID, err
}

// DeleteSession removes a refresh token. Unknown tokens are not an error, so
// logout stays idempotent.
func (s *Store) DeleteSession(ctx context.Context, refreshToken string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken)
	return err
}

// DeleteSessionsForUser revokes every refresh token the user holds.
func (s *Store) DeleteSessionsForUser(ctx context.Context, userID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, db.ToUUID(userID))
	return err
}

// CreatePasswordReset stores a single-use password reset token.
func (s *Store) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO password_resets (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		db.ToUUID(userID), token, expiresAt)
	return err
}

// ConsumePasswordReset deletes and returns the token's user if it is valid
// and unexpired.
func (s *Store) ConsumePasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.Pool.QueryRow(ctx, `
		DELETE FROM password_resets WHERE token = $1 AND expires_at > now()
		RETURNING user_id`, token).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return userID, err
}

// SetPassword replaces the stored password hash.
func (s *Store) SetPassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		db.ToUUID(userID), passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
