// Package pricing implements the integer-cent price calculations for the
// storefront: per-item discount application, order totals and the gross-up
// used to recover an implied platform fee from a stored net amount.
package pricing

import "fmt"

// Money is an amount in minor currency units (cents).
type Money = int64

// Item is a single priced line in a quote.
type Item struct {
	BookID   string
	AuthorID string
	Title    string
	Price    Money
}

// Line is a priced line after discounting.
type Line struct {
	Item
	Paid       Money
	Discounted bool
}

// Quote is the result of pricing a set of items.
type Quote struct {
	Lines         []Line
	OriginalTotal Money
	FinalTotal    Money
	Discount      Money
	Percent       int64
}

// DiscountItem applies a percentage discount to a single price, rounding the
// discount half-up to the nearest cent.
func DiscountItem(price Money, percent int64) Money {
	if percent <= 0 {
		return price
	}
	if percent >= 100 {
		return 0
	}
	off := (price*percent + 50) / 100
	return price - off
}

// Compute prices the given items. A percentage discount is applied per item,
// restricted to items for which eligible returns true; a nil predicate means
// every item is eligible. Duplicate book identifiers are priced per
// occurrence.
func Compute(items []Item, percent int64, eligible func(Item) bool) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, fmt.Errorf("pricing: empty item list")
	}
	if percent < 0 || percent > 100 {
		return Quote{}, fmt.Errorf("pricing: discount percent out of range: %d", percent)
	}
	q := Quote{Percent: percent, Lines: make([]Line, 0, len(items))}
	for _, it := range items {
		if it.Price < 0 {
			return Quote{}, fmt.Errorf("pricing: negative price for book %s", it.BookID)
		}
		paid := it.Price
		applies := percent > 0 && (eligible == nil || eligible(it))
		if applies {
			paid = DiscountItem(it.Price, percent)
		}
		q.Lines = append(q.Lines, Line{Item: it, Paid: paid, Discounted: applies && paid != it.Price})
		q.OriginalTotal += it.Price
		q.FinalTotal += paid
	}
	q.Discount = q.OriginalTotal - q.FinalTotal
	return q, nil
}

// GrossUp recovers the implied platform fee from a net amount: the fee such
// that net + fee, charged at feePercent, leaves exactly net. Rounds half-up.
func GrossUp(net Money, feePercent int64) Money {
	if feePercent <= 0 || net <= 0 || feePercent >= 100 {
		return 0
	}
	return (net*feePercent + (100-feePercent)/2) / (100 - feePercent)
}

// Fee computes the platform fee owed on a gross amount, rounding half-up.
func Fee(gross Money, feePercent int64) Money {
	if feePercent <= 0 || gross <= 0 {
		return 0
	}
	return (gross*feePercent + 50) / 100
}
