// Package payment adapts the external payment processor used to collect
// order totals. Order persistence must never proceed until VerifyOrder has
// confirmed the captured amount server-side.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// Gateway is the processor surface the order flow depends on.
type Gateway interface {
	// CreateOrder registers a payment intent for the given amount and
	// returns the processor's order identifier.
	CreateOrder(ctx context.Context, amountCents int64) (string, error)
	// CaptureOrder finalizes payment for a previously created order.
	CaptureOrder(ctx context.Context, orderID string) (Capture, error)
	// VerifyOrder refetches the order and confirms it is completed, in the
	// expected currency, for exactly the expected amount.
	VerifyOrder(ctx context.Context, orderID string, expectedCents int64) error
}

// Capture is the result of finalizing a payment.
type Capture struct {
	OrderID     string
	Status      string
	AmountCents int64
	Currency    string
	PayerEmail  string
}

// ErrPaymentNotCompleted indicates the processor reports a non-final status.
var ErrPaymentNotCompleted = errors.New("payment: not completed")

// AmountMismatchError indicates the captured amount differs from the
// server-computed total. Both values are carried for audit.
type AmountMismatchError struct {
	ExpectedCents int64
	GotCents      int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment: amount mismatch: expected %d cents, processor reports %d cents",
		e.ExpectedCents, e.GotCents)
}

// CurrencyMismatchError indicates the processor settled in the wrong currency.
type CurrencyMismatchError struct {
	Expected string
	Got      string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("payment: currency mismatch: expected %s, got %s", e.Expected, e.Got)
}

// ExternalError carries the processor's status code and an opaque debug
// identifier for support correlation. Processor secrets are never included.
type ExternalError struct {
	StatusCode int
	DebugID    string
	Operation  string
}

func (e *ExternalError) Error() string {
	if e.DebugID != "" {
		return fmt.Sprintf("payment: %s failed with status %d (debug_id=%s)", e.Operation, e.StatusCode, e.DebugID)
	}
	return fmt.Sprintf("payment: %s failed with status %d", e.Operation, e.StatusCode)
}
