package pricing

import "testing"

func TestDiscountItemRoundsHalfUp(t *testing.T) {
	cases := []struct {
		price   Money
		percent int64
		want    Money
	}{
		{1000, 10, 900},
		{999, 10, 899}, // 99.9 off rounds to 100
		{101, 50, 50},  // 50.5 off rounds to 51
		{1, 50, 0},
		{1000, 0, 1000},
		{1000, 100, 0},
	}
	for _, tc := range cases {
		if got := DiscountItem(tc.price, tc.percent); got != tc.want {
			t.Errorf("DiscountItem(%d, %d) = %d, want %d", tc.price, tc.percent, got, tc.want)
		}
	}
}

func TestComputeNoCoupon(t *testing.T) {
	items := []Item{
		{BookID: "a", AuthorID: "x", Price: 1000},
		{BookID: "b", AuthorID: "y", Price: 2599},
	}
	q, err := Compute(items, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if q.FinalTotal != q.OriginalTotal || q.OriginalTotal != 3599 {
		t.Errorf("totals = %d/%d, want 3599/3599", q.OriginalTotal, q.FinalTotal)
	}
	for _, l := range q.Lines {
		if l.Discounted {
			t.Errorf("line %s marked discounted without coupon", l.BookID)
		}
	}
}

func TestComputeGlobalDiscount(t *testing.T) {
	items := []Item{
		{BookID: "a", AuthorID: "x", Price: 1000},
		{BookID: "b", AuthorID: "y", Price: 2599},
	}
	q, err := Compute(items, 15, nil)
	if err != nil {
		t.Fatal(err)
	}
	// 1000 -> 150 off; 2599 -> 390 off (389.85 rounds up)
	if q.FinalTotal != 850+2209 {
		t.Errorf("final = %d, want %d", q.FinalTotal, 850+2209)
	}
	if q.Discount != q.OriginalTotal-q.FinalTotal {
		t.Errorf("discount mismatch: %d", q.Discount)
	}
}

func TestComputeAuthorScopedDiscount(t *testing.T) {
	items := []Item{
		{BookID: "a", AuthorID: "alice", Price: 1000},
		{BookID: "b", AuthorID: "bob", Price: 1000},
	}
	q, err := Compute(items, 20, func(it Item) bool { return it.AuthorID == "alice" })
	if err != nil {
		t.Fatal(err)
	}
	if q.Lines[0].Paid != 800 || !q.Lines[0].Discounted {
		t.Errorf("alice line = %d discounted=%v, want 800 true", q.Lines[0].Paid, q.Lines[0].Discounted)
	}
	if q.Lines[1].Paid != 1000 || q.Lines[1].Discounted {
		t.Errorf("bob line = %d discounted=%v, want 1000 false", q.Lines[1].Paid, q.Lines[1].Discounted)
	}
	if q.Discount != 200 {
		t.Errorf("discount = %d, want 200", q.Discount)
	}
}

func TestComputeDuplicateBooksPricedPerOccurrence(t *testing.T) {
	items := []Item{
		{BookID: "a", AuthorID: "x", Price: 500},
		{BookID: "a", AuthorID: "x", Price: 500},
	}
	q, err := Compute(items, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if q.OriginalTotal != 1000 || len(q.Lines) != 2 {
		t.Errorf("got total %d with %d lines", q.OriginalTotal, len(q.Lines))
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	if _, err := Compute(nil, 10, nil); err == nil {
		t.Error("expected error for empty items")
	}
	if _, err := Compute([]Item{{Price: 100}}, 101, nil); err == nil {
		t.Error("expected error for percent > 100")
	}
	if _, err := Compute([]Item{{Price: -1}}, 0, nil); err == nil {
		t.Error("expected error for negative price")
	}
}

func TestGrossUp(t *testing.T) {
	// author keeps 900 after a 10% fee on the gross
	fee := GrossUp(900, 10)
	if fee != 100 {
		t.Fatalf("fee = %d, want 100", fee)
	}
	gross := Money(900) + fee
	if Fee(gross, 10) != fee {
		t.Errorf("round trip: Fee(%d) = %d, want %d", gross, Fee(gross, 10), fee)
	}
}

func TestGrossUpRoundTripsWithinACent(t *testing.T) {
	for _, net := range []Money{1, 99, 900, 12345, 999999} {
		for _, p := range []int64{1, 5, 10, 25, 50, 99} {
			fee := GrossUp(net, p)
			gross := net + fee
			back := gross - Fee(gross, p)
			if back < net-1 || back > net+1 {
				t.Errorf("net %d pct %d: gross %d net-back %d", net, p, gross, back)
			}
		}
	}
}
