// Package coupon implements discount code validation and scoping.
package coupon

import (
	"errors"
	"strings"
	"time"
)

// Scope values for a coupon.
const (
	ScopeAll    = "all"
	ScopeAuthor = "author"
)

var (
	// ErrExpired indicates the validity window has closed.
	ErrExpired = errors.New("coupon: expired")
	// ErrNotYetValid indicates the validity window has not opened.
	ErrNotYetValid = errors.New("coupon: not yet valid")
	// ErrInactive indicates the coupon is disabled.
	ErrInactive = errors.New("coupon: inactive")
	// ErrScopeMismatch indicates no cart item matches the bound author.
	ErrScopeMismatch = errors.New("coupon: no eligible items for scoped coupon")
)

// Rule is the validation view of a coupon.
type Rule struct {
	Code      string
	Percent   int64
	Scope     string
	AuthorID  string
	Active    bool
	ValidFrom time.Time
	ValidTo   time.Time
}

// NormalizeCode canonicalizes a user-supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the coupon's temporal and activity state. An expired window
// takes precedence over the active flag.
func (r Rule) Validate(now time.Time) error {
	if !r.ValidTo.IsZero() && now.After(r.ValidTo) {
		return ErrExpired
	}
	if !r.ValidFrom.IsZero() && now.Before(r.ValidFrom) {
		return ErrNotYetValid
	}
	if !r.Active {
		return ErrInactive
	}
	return nil
}

// AppliesTo reports whether an item owned by authorID is eligible for the
// discount.
func (r Rule) AppliesTo(authorID string) bool {
	if r.Scope == ScopeAuthor {
		return authorID == r.AuthorID
	}
	return true
}

// EnsureApplicable verifies that at least one cart item is eligible. Only
// author-scoped coupons can fail this check.
func (r Rule) EnsureApplicable(authorIDs []string) error {
	if r.Scope != ScopeAuthor {
		return nil
	}
	for _, id := range authorIDs {
		if id == r.AuthorID {
			return nil
		}
	}
	return ErrScopeMismatch
}
