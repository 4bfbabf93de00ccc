// Package order persists completed purchases and splits each sale into
// per-author earnings net of the platform fee.
package order

import (
	"fmt"
	"sort"

	"github.com/pustaka-labs/backend-pustaka/internal/pricing"
)

// EarningsEntry is one author's slice of an order.
type EarningsEntry struct {
	AuthorID   string
	ShareCents int64
	FeeCents   int64
	NetCents   int64
	PaidOut    bool
}

// Split is the full allocation of an order's final total.
type Split struct {
	Entries       []EarningsEntry
	AuthorNet     int64
	PlatformCents int64
}

// SplitEarnings allocates an order's final total across authors in proportion
// to each author's share of the original (pre-discount) total, then deducts
// the platform fee from each share. The allocation uses largest remainders so
// the shares sum exactly to the final total, and the platform keeps every
// cent the authors do not.
func SplitEarnings(q pricing.Quote, feePercent int64, directPayout bool) (Split, error) {
	if len(q.Lines) == 0 {
		return Split{}, fmt.Errorf("order: cannot split empty quote")
	}
	if feePercent < 0 || feePercent >= 100 {
		return Split{}, fmt.Errorf("order: fee percent out of range: %d", feePercent)
	}

	originals := map[string]int64{}
	authorOrder := []string{}
	for _, l := range q.Lines {
		if _, seen := originals[l.AuthorID]; !seen {
			authorOrder = append(authorOrder, l.AuthorID)
		}
		originals[l.AuthorID] += l.Price
	}

	shares := map[string]int64{}
	if q.OriginalTotal == 0 {
		// all-free cart: nothing to allocate
		for _, a := range authorOrder {
			shares[a] = 0
		}
	} else {
		type rem struct {
			author    string
			remainder int64
		}
		var (
			allocated int64
			rems      []rem
		)
		for _, a := range authorOrder {
			num := originals[a] * q.FinalTotal
			shares[a] = num / q.OriginalTotal
			allocated += shares[a]
			rems = append(rems, rem{author: a, remainder: num % q.OriginalTotal})
		}
		leftover := q.FinalTotal - allocated
		sort.SliceStable(rems, func(i, j int) bool { return rems[i].remainder > rems[j].remainder })
		for i := int64(0); i < leftover; i++ {
			shares[rems[i%int64(len(rems))].author]++
		}
	}

	var split Split
	for _, a := range authorOrder {
		share := shares[a]
		fee := pricing.Fee(share, feePercent)
		entry := EarningsEntry{
			AuthorID:   a,
			ShareCents: share,
			FeeCents:   fee,
			NetCents:   share - fee,
			PaidOut:    directPayout,
		}
		split.Entries = append(split.Entries, entry)
		split.AuthorNet += entry.NetCents
	}
	split.PlatformCents = q.FinalTotal - split.AuthorNet
	return split, nil
}
