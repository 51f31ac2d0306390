// Package coordinator implements the tick coordinator and update bus
// (spec component C7): a bounded task queue drained by a fixed pool of
// worker-runner goroutines, a periodic timer that turns every active
// item into a MarketTick task each tick_interval_ms, and a
// many-producer/many-consumer update bus that fans published snapshots
// out to subscribers with drop-oldest back-pressure. Statistics are
// kept as prometheus counters/gauges on a private registry, read back
// through Stats() for the read-only snapshot external callers get.
//
// The task-queue/runner-pool shape is adapted from the teacher's
// pkg/replica/manager.go, which fans a batch of replication entries out
// to N peers and waits for a quorum; here the same "bounded work,
// bounded concurrency, collect results" shape drains a queue of order
// and tick tasks with a fixed number of runners instead of an
// unbounded goroutine per peer.
package coordinator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stllok/kurumisan-stock-game/internal/apperr"
	"github.com/stllok/kurumisan-stock-game/internal/config"
	"github.com/stllok/kurumisan-stock-game/internal/dispatch"
	"github.com/stllok/kurumisan-stock-game/internal/market"
	"github.com/stllok/kurumisan-stock-game/internal/priceengine"
	"github.com/stllok/kurumisan-stock-game/pkg/obs"
)

// TaskKind distinguishes the two accepted task shapes (spec section 4.7).
type TaskKind int

const (
	TaskProcessOrder TaskKind = iota
	TaskMarketTick
)

// Task is one unit of work accepted onto the bounded queue. Reply is
// optional: MarketTick tasks produced by the internal timer have none,
// while ProcessOrder tasks submitted by an external caller via EnqueueOrder
// carry a buffered reply channel so the caller can await the result.
type Task struct {
	Kind   TaskKind
	ItemID string
	Order  market.OrderRequest
	Reply  chan TaskResult
}

// TaskResult is the outcome of a ProcessOrder task.
type TaskResult struct {
	Submit market.SubmitResult
	Err    error
}

// Coordinator owns the task queue, the runner pool, the update bus, and
// the periodic tick timer driving dispatch.Pool.
type Coordinator struct {
	cfg   config.Config
	pool  *dispatch.Pool
	clock priceengine.Clock
	obs   *obs.Client

	queue chan Task
	bus   *updateBus
	stats *statistics

	candleMu sync.Mutex
	candles  map[string]*candleAccumulator

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a coordinator around an already-populated worker pool. It
// does not start the timer or runner pool; call Start for that.
func New(cfg config.Config, pool *dispatch.Pool, clock priceengine.Clock, obsClient *obs.Client) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		pool:    pool,
		clock:   clock,
		obs:     obsClient,
		queue:   make(chan Task, cfg.QueueCapacity),
		bus:     newUpdateBus(),
		stats:   newStatistics(time.Now()),
		candles: make(map[string]*candleAccumulator),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the fixed runner pool and the periodic tick timer.
func (c *Coordinator) Start() {
	for i := 0; i < c.cfg.WorkerPoolSize; i++ {
		c.wg.Add(1)
		go c.runLoop()
	}
	c.wg.Add(1)
	go c.tickLoop()
}

// Stop signals every runner and the tick loop to exit and awaits them.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// EnqueueOrder submits an order onto the task queue for asynchronous
// processing by a runner, returning a channel the caller can receive
// the eventual result from. A full queue fails fast with BACKPRESSURE
// rather than blocking the caller (spec section 5).
func (c *Coordinator) EnqueueOrder(itemID string, order market.OrderRequest) (<-chan TaskResult, error) {
	reply := make(chan TaskResult, 1)
	task := Task{Kind: TaskProcessOrder, ItemID: itemID, Order: order, Reply: reply}
	select {
	case c.queue <- task:
		return reply, nil
	default:
		return nil, apperr.New(apperr.Backpressure, "task queue is full")
	}
}

// Subscribe registers a new update-bus subscriber for the given item
// ids (nil/empty means every item) and immediately emits one "init"
// event per requested item carrying its current snapshot. The returned
// cancel func deregisters the subscriber; callers must invoke it when
// done to release the channel.
func (c *Coordinator) Subscribe(itemIDs []string) (<-chan MarketUpdate, func(), error) {
	sub := c.bus.subscribe(itemIDs, c.cfg.QueueCapacity)

	for _, id := range resolveSubscribedItems(itemIDs, c.pool.ItemIDs()) {
		info, err := c.pool.MarketInfo(id)
		if err != nil {
			continue
		}
		c.bus.deliverTo(sub, MarketUpdate{
			Type:         UpdateInit,
			ItemID:       id,
			CurrentPrice: info.CurrentPrice,
			BestBid:      info.BestBid,
			HasBestBid:   info.HasBestBid,
			BestAsk:      info.BestAsk,
			HasBestAsk:   info.HasBestAsk,
			TimestampMS:  c.clock.NowMS(),
		})
	}

	cancel := func() { c.bus.unsubscribe(sub) }
	return sub.ch, cancel, nil
}

// Stats returns a read-only snapshot of the coordinator's counters.
func (c *Coordinator) Stats() StatsSnapshot {
	return c.stats.snapshot(c.pool.ActiveWorkers(), c.pool.RestartsTotal())
}

// Registry exposes the coordinator's private prometheus registry for a
// /metrics scrape endpoint to serve.
func (c *Coordinator) Registry() *prometheus.Registry {
	return c.stats.Registry()
}

func resolveSubscribedItems(requested, all []string) []string {
	if len(requested) == 0 {
		return all
	}
	return requested
}

func (c *Coordinator) runLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case task, ok := <-c.queue:
			if !ok {
				return
			}
			c.handleTask(task)
		}
	}
}

func (c *Coordinator) handleTask(task Task) {
	switch task.Kind {
	case TaskProcessOrder:
		result := c.processOrderWithRetry(task.ItemID, task.Order)
		c.stats.ordersProcessed.Inc()
		if task.Reply != nil {
			task.Reply <- result
		}
	case TaskMarketTick:
		c.runTick(task.ItemID)
	}
}

// processOrderWithRetry retries only the transient WORKER_UNAVAILABLE
// case (a crashed worker mid-restart); every other error (validation,
// insufficient funds/inventory, unknown item) is a caller mistake and
// is returned immediately without burning a retry.
func (c *Coordinator) processOrderWithRetry(itemID string, order market.OrderRequest) TaskResult {
	delay := time.Duration(c.cfg.RetryDelayMS) * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		result, err := c.pool.Submit(itemID, order)
		if err == nil {
			return TaskResult{Submit: result}
		}
		lastErr = err
		if !apperr.Is(err, apperr.WorkerUnavailable) {
			return TaskResult{Err: err}
		}
		if attempt < c.cfg.MaxRetries {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return TaskResult{Err: lastErr}
}

func (c *Coordinator) tickLoop() {
	defer c.wg.Done()
	interval := time.Duration(c.cfg.TickIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.enqueueTicksForAllItems()
		}
	}
}

// enqueueTicksForAllItems mirrors spec section 5's back-pressure rule:
// the tick loop prefers to drop its own enqueue attempt over blocking.
func (c *Coordinator) enqueueTicksForAllItems() {
	for _, id := range c.pool.ItemIDs() {
		task := Task{Kind: TaskMarketTick, ItemID: id}
		select {
		case c.queue <- task:
		default:
			c.stats.ticksDropped.Inc()
		}
	}
}

func (c *Coordinator) runTick(itemID string) {
	result, err := c.pool.Tick(itemID)
	if err != nil {
		return
	}
	c.stats.lastTickUnixMS.Set(float64(c.clock.NowMS()))
	if len(result.Trades) > 0 {
		c.stats.tradesMatched.Add(float64(len(result.Trades)))
	}

	candle := c.rollCandle(itemID, result)

	info, err := c.pool.MarketInfo(itemID)
	if err != nil {
		return
	}

	update := MarketUpdate{
		Type:         UpdatePrice,
		ItemID:       itemID,
		CurrentPrice: result.CurrentPrice,
		BestBid:      info.BestBid,
		HasBestBid:   info.HasBestBid,
		BestAsk:      info.BestAsk,
		HasBestAsk:   info.HasBestAsk,
		TimestampMS:  c.clock.NowMS(),
		Candle:       candle,
	}
	if len(result.Trades) > 0 {
		update.Type = UpdateTrade
	}

	c.bus.publish(update, c.stats.updatesBroadcast, c.stats.updatesDropped)
}

// rollCandle folds this tick's trades into itemID's rolling high/low/
// volume accumulator, resetting it every candle_ticks ticks (the
// candle/OHLC supplement; see SPEC_FULL.md).
func (c *Coordinator) rollCandle(itemID string, result market.TickResult) *Candle {
	if c.cfg.CandleTicks <= 0 {
		return nil
	}

	c.candleMu.Lock()
	defer c.candleMu.Unlock()

	acc, ok := c.candles[itemID]
	if !ok {
		acc = &candleAccumulator{high: result.CurrentPrice, low: result.CurrentPrice}
		c.candles[itemID] = acc
	}

	acc.ticks++
	if result.CurrentPrice > acc.high || acc.ticks == 1 {
		acc.high = max(acc.high, result.CurrentPrice)
	}
	if result.CurrentPrice < acc.low || acc.ticks == 1 {
		acc.low = min(acc.low, result.CurrentPrice)
	}
	for _, tr := range result.Trades {
		acc.volume += tr.Quantity
	}

	out := &Candle{High: acc.high, Low: acc.low, Volume: acc.volume}

	if acc.ticks >= c.cfg.CandleTicks {
		c.candles[itemID] = &candleAccumulator{high: result.CurrentPrice, low: result.CurrentPrice}
	}

	return out
}

type candleAccumulator struct {
	high, low, volume float64
	ticks             int64
}
