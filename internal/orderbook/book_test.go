package orderbook

import "testing"

func TestBasicCross(t *testing.T) {
	b := New()
	if err := b.Add(&Order{ID: "alice", ItemID: "BTC", Side: Buy, Kind: Limit, Price: 50000, Quantity: 1.5, Timestamp: 1}); err != nil {
		t.Fatalf("add alice: %v", err)
	}
	if err := b.Add(&Order{ID: "bob", ItemID: "BTC", Side: Sell, Kind: Limit, Price: 49900, Quantity: 1.5, Timestamp: 2}); err != nil {
		t.Fatalf("add bob: %v", err)
	}

	trades := b.Match()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Quantity != 1.5 || tr.Price != 49900 || tr.BuyOrderID != "alice" || tr.SellOrderID != "bob" {
		t.Fatalf("unexpected trade: %+v", tr)
	}
	if _, ok := b.Get("alice"); ok {
		t.Fatalf("alice should be gone after full fill")
	}
	if _, ok := b.Get("bob"); ok {
		t.Fatalf("bob should be gone after full fill")
	}
}

func TestPartialFillOnBid(t *testing.T) {
	b := New()
	must(t, b.Add(&Order{ID: "buyer", ItemID: "X", Side: Buy, Kind: Limit, Price: 55, Quantity: 150, Timestamp: 1}))
	must(t, b.Add(&Order{ID: "seller", ItemID: "X", Side: Sell, Kind: Limit, Price: 50, Quantity: 100, Timestamp: 2}))

	trades := b.Match()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Price != 50 || trades[0].Quantity != 100 {
		t.Fatalf("unexpected trade: %+v", trades[0])
	}

	remaining, ok := b.Get("buyer")
	if !ok {
		t.Fatalf("buyer should remain resting")
	}
	if remaining.Quantity != 50 || remaining.Status != Partial {
		t.Fatalf("unexpected remaining bid: %+v", remaining)
	}
	if _, ok := b.Get("seller"); ok {
		t.Fatalf("seller should be gone after full fill")
	}
}

func TestMultiLevelCascade(t *testing.T) {
	b := New()
	must(t, b.Add(&Order{ID: "bid55", ItemID: "X", Side: Buy, Kind: Limit, Price: 55, Quantity: 100, Timestamp: 1}))
	must(t, b.Add(&Order{ID: "bid53", ItemID: "X", Side: Buy, Kind: Limit, Price: 53, Quantity: 100, Timestamp: 2}))
	must(t, b.Add(&Order{ID: "ask50", ItemID: "X", Side: Sell, Kind: Limit, Price: 50, Quantity: 75, Timestamp: 3}))
	must(t, b.Add(&Order{ID: "ask52", ItemID: "X", Side: Sell, Kind: Limit, Price: 52, Quantity: 75, Timestamp: 4}))

	trades := b.Match()
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	want := []struct {
		qty, price float64
	}{
		{75, 50},
		{25, 52},
		{50, 52},
	}
	for i, w := range want {
		if trades[i].Quantity != w.qty || trades[i].Price != w.price {
			t.Fatalf("trade %d: expected qty=%v price=%v got %+v", i, w.qty, w.price, trades[i])
		}
	}

	remaining, ok := b.Get("bid53")
	if !ok || remaining.Quantity != 50 {
		t.Fatalf("expected bid53 remaining at 50, got %+v ok=%v", remaining, ok)
	}
	for _, id := range []string{"bid55", "ask50", "ask52"} {
		if _, ok := b.Get(id); ok {
			t.Fatalf("%s should be fully consumed", id)
		}
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	b := New()
	must(t, b.Add(&Order{ID: "o1", ItemID: "X", Side: Buy, Kind: Limit, Price: 10, Quantity: 1, Timestamp: 1}))

	if !b.Remove("o1") {
		t.Fatalf("expected first cancel to succeed")
	}
	if b.Remove("o1") {
		t.Fatalf("expected second cancel to be a no-op returning false")
	}
}

func TestRestingMarketOrderWithNoLiquidity(t *testing.T) {
	b := New()
	must(t, b.Add(&Order{ID: "m1", ItemID: "X", Side: Buy, Kind: Market, Quantity: 10, Timestamp: 1}))

	trades := b.Match()
	if len(trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(trades))
	}
	if _, ok := b.Get("m1"); !ok {
		t.Fatalf("expected market order to remain resting")
	}
}

func TestTwoMarketOrdersDoNotMatch(t *testing.T) {
	b := New()
	must(t, b.Add(&Order{ID: "mb", ItemID: "X", Side: Buy, Kind: Market, Quantity: 5, Timestamp: 1}))
	must(t, b.Add(&Order{ID: "ms", ItemID: "X", Side: Sell, Kind: Market, Quantity: 5, Timestamp: 2}))

	trades := b.Match()
	if len(trades) != 0 {
		t.Fatalf("expected market-vs-market to never match, got %d trades", len(trades))
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
