package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/pustaka-labs/backend-pustaka/internal/common"
	"github.com/pustaka-labs/backend-pustaka/internal/events"
)

// Querier is the storage surface the auth service needs.
type Querier interface {
	Create(ctx context.Context, email, passwordHash, displayName string, roles []string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	CreateSession(ctx context.Context, userID, refreshToken string, expiresAt time.Time) error
	ConsumeSession(ctx context.Context, refreshToken string) (string, error)
	DeleteSession(ctx context.Context, refreshToken string) error
	DeleteSessionsForUser(ctx context.Context, userID string) error
	CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, token string) (string, error)
	SetPassword(ctx context.Context, userID, passwordHash string) error
}

// resetTokenTTL bounds how long a password reset link stays usable.
const resetTokenTTL = 30 * time.Minute

// Service implements registration, login and token issuance.
type Service struct {
	Q          Querier
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Bus        *events.Bus
	Logger     zerolog.Logger
}

// TokenPair bundles an access token with its refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

var errNotConfigured = errors.New("auth: service not configured")

func unauthorized(msg string) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", msg, http.StatusUnauthorized, nil)
}

// Register creates an account. The author role is granted at registration
// when requested; admin is never self-assignable.
func (s *Service) Register(ctx context.Context, email, password, displayName string, asAuthor bool) (User, error) {
	if s == nil || s.Q == nil {
		return User{}, errNotConfigured
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, common.ValidationError("a valid email is required")
	}
	if len(password) < 8 {
		return User{}, common.ValidationError("password must be at least 8 characters")
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return User{}, err
	}
	roles := []string{"customer"}
	if asAuthor {
		roles = append(roles, "author")
	}
	u, err := s.Q.Create(ctx, email, hash, displayName, roles)
	if errors.Is(err, ErrEmailTaken) {
		return User{}, common.NewAppError("EMAIL_TAKEN", "email already registered", http.StatusConflict, err)
	}
	if err != nil {
		return User{}, err
	}
	s.Bus.Emit(ctx, events.TopicUserRegistered, map[string]any{
		"userId": u.ID,
		"email":  u.Email,
	})
	return u, nil
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (User, TokenPair, error) {
	if s == nil || s.Q == nil {
		return User{}, TokenPair{}, errNotConfigured
	}
	u, err := s.Q.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return User{}, TokenPair{}, unauthorized("invalid credentials")
	}
	if err != nil {
		return User{}, TokenPair{}, err
	}
	match, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	if !match {
		return User{}, TokenPair{}, unauthorized("invalid credentials")
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh rotates a refresh token into a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (User, TokenPair, error) {
	if s == nil || s.Q == nil {
		return User{}, TokenPair{}, errNotConfigured
	}
	userID, err := s.Q.ConsumeSession(ctx, refreshToken)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, TokenPair{}, unauthorized("invalid refresh token")
	}
	if err != nil {
		return User{}, TokenPair{}, err
	}
	u, err := s.Q.GetByID(ctx, userID)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout revokes a refresh token. Unknown tokens succeed, so repeated
// logouts are harmless.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if s == nil || s.Q == nil {
		return errNotConfigured
	}
	return s.Q.DeleteSession(ctx, refreshToken)
}

// StartPasswordReset issues a single-use reset token for the account. The
// caller must not reveal whether the email exists.
func (s *Service) StartPasswordReset(ctx context.Context, email string) (User, string, error) {
	if s == nil || s.Q == nil {
		return User{}, "", errNotConfigured
	}
	u, err := s.Q.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, "", err
	}
	token := uuid.NewString()
	if err := s.Q.CreatePasswordReset(ctx, u.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// ResetPassword consumes a reset token, replaces the password and revokes
// every open session for the account.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if s == nil || s.Q == nil {
		return errNotConfigured
	}
	if len(newPassword) < 8 {
		return common.ValidationError("password must be at least 8 characters")
	}
	userID, err := s.Q.ConsumePasswordReset(ctx, token)
	if errors.Is(err, ErrUserNotFound) {
		return common.NewAppError("RESET_TOKEN_INVALID", "reset token is invalid or expired", http.StatusBadRequest, err)
	}
	if err != nil {
		return err
	}
	hash, err := argon2id.CreateHash(newPassword, argon2id.DefaultParams)
	if err != nil {
		return err
	}
	if err := s.Q.SetPassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.Q.DeleteSessionsForUser(ctx, userID)
}

func (s *Service) issue(ctx context.Context, u User) (TokenPair, error) {
	now := time.Now()
	expires := now.Add(s.AccessTTL)
	tok, err := jwt.NewBuilder().
		Subject(u.ID).
		IssuedAt(now).
		Expiration(expires).
		Claim("roles", u.Roles).
		Build()
	if err != nil {
		return TokenPair{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.Secret))
	if err != nil {
		return TokenPair{}, err
	}
	refresh := uuid.NewString()
	if err := s.Q.CreateSession(ctx, u.ID, refresh, now.Add(s.RefreshTTL)); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  string(signed),
		RefreshToken: refresh,
		ExpiresAt:    expires,
	}, nil
}

// ParseToken validates a signed access token and returns the subject and
// roles.
func (s *Service) ParseToken(raw string) (string, []string, error) {
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, s.Secret), jwt.WithValidate(true))
	if err != nil {
		return "", nil, unauthorized("invalid token")
	}
	var roles []string
	if v, ok := tok.Get("roles"); ok {
		if raw, ok := v.([]any); ok {
			for _, r := range raw {
				if str, ok := r.(string); ok {
					roles = append(roles, str)
				}
			}
		}
	}
	return tok.Subject(), roles, nil
}
