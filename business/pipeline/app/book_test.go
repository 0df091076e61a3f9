package app

import (
	"testing"
	"time"

	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
)

func TestBook_Batch(t *testing.T) {
	b := newBook(2 * time.Second)

	if got := b.batch(quote("orca", "SOL/USDC", "100", t0)); got.Len() != 0 {
		t.Fatalf("single venue batch = %+v, want empty", got)
	}

	got := b.batch(quote("meteora", "SOL/USDC", "101", t0.Add(time.Second)))
	if len(got.Quotes) != 2 || got.Quotes[0].Venue != "meteora" || got.Quotes[1].Venue != "orca" {
		t.Fatalf("batch = %+v, want meteora and orca sorted", got.Quotes)
	}

	// orca's quote is now 3s older than the newest one
	got = b.batch(quote("raydium", "SOL/USDC", "100.5", t0.Add(3*time.Second)))
	if len(got.Quotes) != 2 {
		t.Fatalf("batch = %+v, want stale orca dropped", got.Quotes)
	}
	for _, q := range got.Quotes {
		if q.Venue == "orca" {
			t.Errorf("stale quote from orca kept")
		}
	}

	invalid := quote("orca", "SOL/USDC", "0", t0.Add(3*time.Second))
	if got := b.batch(invalid); len(got.Quotes) != 1 {
		t.Errorf("invalid quote batch = %+v, want it alone", got.Quotes)
	}
	if _, ok := b.quotes["SOL/USDC"]["orca"]; ok {
		t.Error("invalid quote stored in book")
	}

	pos := marketdomain.Event{Position: &marketdomain.PositionSnapshot{PositionID: "p1"}}
	if got := b.batch(pos); len(got.Positions) != 1 {
		t.Errorf("position batch = %+v", got)
	}
}

func TestShard(t *testing.T) {
	a := quote("orca", "SOL/USDC", "100", t0)
	b := quote("raydium", "SOL/USDC", "101", t0)

	for n := 1; n <= 8; n++ {
		i := shard(a, n)
		if i < 0 || i >= n {
			t.Fatalf("shard = %d, out of [0,%d)", i, n)
		}
		if j := shard(b, n); j != i {
			t.Errorf("same pair routed to %d and %d with %d workers", i, j, n)
		}
	}
}
