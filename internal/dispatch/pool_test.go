package dispatch

import (
	"testing"
	"time"

	"github.com/stllok/kurumisan-stock-game/internal/apperr"
	"github.com/stllok/kurumisan-stock-game/internal/config"
	"github.com/stllok/kurumisan-stock-game/internal/market"
	"github.com/stllok/kurumisan-stock-game/internal/orderbook"
)

type fixedClock struct{ ms int64 }

func (c *fixedClock) NowMS() int64 { c.ms++; return c.ms }

type fixedRNG struct{}

func (fixedRNG) Uniform01() float64 { return 0.5 }

func newTestPool() *Pool {
	return New(config.Default(), &fixedClock{}, fixedRNG{})
}

func TestSpawnIsIdempotent(t *testing.T) {
	p := newTestPool()
	defer p.Stop()

	if err := p.Spawn("BTC", 50000); err != nil {
		t.Fatalf("unexpected spawn error: %v", err)
	}
	if err := p.Spawn("BTC", 50000); err != nil {
		t.Fatalf("unexpected error on repeat spawn: %v", err)
	}
	if got := len(p.ItemIDs()); got != 1 {
		t.Fatalf("expected exactly one worker after repeated spawn, got %d", got)
	}
}

func TestSubmitToUnknownItemFailsWithNoWorker(t *testing.T) {
	p := newTestPool()
	defer p.Stop()

	_, err := p.Submit("GHOST", market.OrderRequest{OrderID: "o1", PlayerID: "alice", Side: orderbook.Buy, Kind: orderbook.Limit, Price: 10, Quantity: 1})
	if !apperr.Is(err, apperr.NoWorker) {
		t.Fatalf("expected NO_WORKER, got %v", err)
	}
}

func TestSubmitCancelAndTickRouteToTheSpawnedWorker(t *testing.T) {
	p := newTestPool()
	defer p.Stop()

	if err := p.Spawn("BTC", 50000); err != nil {
		t.Fatalf("unexpected spawn error: %v", err)
	}

	if _, err := p.Submit("BTC", market.OrderRequest{OrderID: "o1", PlayerID: "alice", Side: orderbook.Buy, Kind: orderbook.Limit, Price: 50000, Quantity: 1}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	book, err := p.GetOrderBook("BTC")
	if err != nil {
		t.Fatalf("unexpected get order book error: %v", err)
	}
	if len(book.Bids) != 1 {
		t.Fatalf("expected 1 resting bid, got %+v", book.Bids)
	}

	if err := p.Cancel("BTC", "o1"); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}

	if _, err := p.Tick("BTC"); err != nil {
		t.Fatalf("unexpected tick error: %v", err)
	}
}

func TestTickAllFansOutToEveryWorker(t *testing.T) {
	p := newTestPool()
	defer p.Stop()

	must(t, p.Spawn("BTC", 50000))
	must(t, p.Spawn("ETH", 3000))

	results := p.TickAll()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for item, outcome := range results {
		if outcome.Err != nil {
			t.Fatalf("unexpected tick error for %s: %v", item, outcome.Err)
		}
		if outcome.Result.CurrentPrice <= 0 {
			t.Fatalf("expected a positive price for %s, got %v", item, outcome.Result.CurrentPrice)
		}
	}
}

func TestWorkerCrashTriggersBackoffRestartPreservingState(t *testing.T) {
	p := newTestPool()
	defer p.Stop()

	must(t, p.Spawn("X", 100))
	if _, err := p.Submit("X", market.OrderRequest{OrderID: "o1", PlayerID: "alice", Side: orderbook.Buy, Kind: orderbook.Limit, Price: 100, Quantity: 1}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	// force a crash by submitting a request with an invariant-violating side
	_, err := p.Submit("X", market.OrderRequest{OrderID: "bad", PlayerID: "alice", Side: orderbook.Side(99), Kind: orderbook.Limit, Price: 1, Quantity: 1})
	if !apperr.Is(err, apperr.WorkerUnavailable) {
		t.Fatalf("expected WORKER_UNAVAILABLE from the crash, got %v", err)
	}

	// immediately after the crash, the worker is unavailable
	if _, err := p.GetOrderBook("X"); !apperr.Is(err, apperr.WorkerUnavailable) {
		t.Fatalf("expected WORKER_UNAVAILABLE right after crash, got %v", err)
	}

	// the first restart backoff is 100ms; give it a comfortable margin
	time.Sleep(250 * time.Millisecond)

	if p.RestartsTotal() != 1 {
		t.Fatalf("expected 1 restart, got %d", p.RestartsTotal())
	}

	book, err := p.GetOrderBook("X")
	if err != nil {
		t.Fatalf("expected the restarted worker to serve requests, got %v", err)
	}
	if len(book.Bids) != 1 {
		t.Fatalf("expected the pre-crash resting order to survive the restart, got %+v", book.Bids)
	}
}

func TestStopAwaitsEveryWorker(t *testing.T) {
	p := newTestPool()
	must(t, p.Spawn("BTC", 50000))
	must(t, p.Spawn("ETH", 3000))

	p.Stop()

	for _, item := range []string{"BTC", "ETH"} {
		if _, err := p.GetOrderBook(item); !apperr.Is(err, apperr.NoWorker) && !apperr.Is(err, apperr.WorkerUnavailable) {
			t.Fatalf("expected a routing or availability error after stop, got %v", err)
		}
	}

	if err := p.Spawn("LTC", 100); !apperr.Is(err, apperr.WorkerUnavailable) {
		t.Fatalf("expected spawn on a stopped pool to fail, got %v", err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
