package coordinator

import (
	"testing"
	"time"

	"github.com/stllok/kurumisan-stock-game/internal/apperr"
	"github.com/stllok/kurumisan-stock-game/internal/config"
	"github.com/stllok/kurumisan-stock-game/internal/dispatch"
	"github.com/stllok/kurumisan-stock-game/internal/market"
	"github.com/stllok/kurumisan-stock-game/internal/orderbook"
	"github.com/stllok/kurumisan-stock-game/pkg/obs"
)

type fixedClock struct{ ms int64 }

func (c *fixedClock) NowMS() int64 { c.ms++; return c.ms }

type fixedRNG struct{}

func (fixedRNG) Uniform01() float64 { return 0.5 }

func newTestCoordinator(t *testing.T, cfg config.Config) (*Coordinator, *dispatch.Pool) {
	t.Helper()
	pool := dispatch.New(cfg, &fixedClock{}, fixedRNG{})
	must(t, pool.Spawn("X", 100))
	c := New(cfg, pool, &fixedClock{}, obs.New())
	c.Start()
	t.Cleanup(func() {
		c.Stop()
		pool.Stop()
	})
	return c, pool
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnqueueOrderIsProcessedByARunner(t *testing.T) {
	cfg := config.Default()
	cfg.TickIntervalMS = 10_000 // keep the timer out of this test's way
	c, _ := newTestCoordinator(t, cfg)

	reply, err := c.EnqueueOrder("X", market.OrderRequest{OrderID: "o1", PlayerID: "alice", Side: orderbook.Buy, Kind: orderbook.Limit, Price: 100, Quantity: 1})
	must(t, err)

	select {
	case result := <-reply:
		if result.Err != nil {
			t.Fatalf("unexpected submit error: %v", result.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task result")
	}

	if got := c.Stats().OrdersProcessed; got != 1 {
		t.Fatalf("expected 1 order processed, got %d", got)
	}
}

func TestEnqueueOrderFailsWithBackpressureWhenQueueIsFull(t *testing.T) {
	cfg := config.Default()
	cfg.QueueCapacity = 1
	cfg.WorkerPoolSize = 0 // nothing drains the queue
	cfg.TickIntervalMS = 10_000
	pool := dispatch.New(cfg, &fixedClock{}, fixedRNG{})
	must(t, pool.Spawn("X", 100))
	c := New(cfg, pool, &fixedClock{}, obs.New())
	c.Start()
	defer func() {
		c.Stop()
		pool.Stop()
	}()

	order := market.OrderRequest{OrderID: "o1", PlayerID: "alice", Side: orderbook.Buy, Kind: orderbook.Limit, Price: 100, Quantity: 1}
	if _, err := c.EnqueueOrder("X", order); err != nil {
		t.Fatalf("expected the first enqueue to fit, got %v", err)
	}
	if _, err := c.EnqueueOrder("X", order); !apperr.Is(err, apperr.Backpressure) {
		t.Fatalf("expected BACKPRESSURE once the queue is full, got %v", err)
	}
}

func TestSubscribeDeliversOneInitEventPerItem(t *testing.T) {
	cfg := config.Default()
	cfg.TickIntervalMS = 10_000
	c, _ := newTestCoordinator(t, cfg)

	ch, cancel, err := c.Subscribe([]string{"X"})
	must(t, err)
	defer cancel()

	select {
	case update := <-ch:
		if update.Type != UpdateInit || update.ItemID != "X" {
			t.Fatalf("expected an init event for X, got %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the init event")
	}
}

func TestTickLoopPublishesPriceUpdatesToSubscribers(t *testing.T) {
	cfg := config.Default()
	cfg.TickIntervalMS = 10
	c, _ := newTestCoordinator(t, cfg)

	ch, cancel, err := c.Subscribe([]string{"X"})
	must(t, err)
	defer cancel()

	// drain the init event first
	<-ch

	select {
	case update := <-ch:
		if update.Type != UpdatePrice {
			t.Fatalf("expected a price update, got %+v", update)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a tick-driven price update")
	}

	stats := c.Stats()
	if stats.UpdatesBroadcast == 0 {
		t.Fatalf("expected at least one broadcast update, got %+v", stats)
	}
}

func TestEnqueueOrderRetriesOnlyOnWorkerUnavailableNotOnValidationErrors(t *testing.T) {
	cfg := config.Default()
	cfg.TickIntervalMS = 10_000
	cfg.MaxRetries = 2
	cfg.RetryDelayMS = 5
	c, _ := newTestCoordinator(t, cfg)

	// a non-positive quantity is a VALIDATION error, never retried
	reply, err := c.EnqueueOrder("X", market.OrderRequest{OrderID: "bad", PlayerID: "alice", Side: orderbook.Buy, Kind: orderbook.Limit, Price: 100, Quantity: 0})
	must(t, err)

	select {
	case result := <-reply:
		if !apperr.Is(result.Err, apperr.Validation) {
			t.Fatalf("expected VALIDATION, got %v", result.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task result")
	}
}

func TestStopDrainsRunnersAndTickLoop(t *testing.T) {
	cfg := config.Default()
	cfg.TickIntervalMS = 10
	pool := dispatch.New(cfg, &fixedClock{}, fixedRNG{})
	must(t, pool.Spawn("X", 100))
	c := New(cfg, pool, &fixedClock{}, obs.New())
	c.Start()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
	pool.Stop()
}
