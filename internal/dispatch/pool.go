// Package dispatch implements the worker pool/dispatcher (spec component
// C6): a registry mapping item id to market.Worker handle, request
// routing, parallel tick fan-out, and crash-triggered restart with
// exponential backoff. The registry shape and the parallel fan-out are
// adapted from the teacher's pkg/replica/{coordinator,manager}.go — there
// a mutex-guarded map plus a sequence counter tracked raft-style log
// replication to N peers; here the same shape tracks N worker handles
// plus their per-item crash bookkeeping, and the WaitGroup/mutex fan-out
// that used to replicate one entry to every peer now ticks every worker.
package dispatch

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/stllok/kurumisan-stock-game/internal/apperr"
	"github.com/stllok/kurumisan-stock-game/internal/config"
	"github.com/stllok/kurumisan-stock-game/internal/ledger"
	"github.com/stllok/kurumisan-stock-game/internal/market"
	"github.com/stllok/kurumisan-stock-game/internal/orderbook"
	"github.com/stllok/kurumisan-stock-game/internal/priceengine"
)

// TickOutcome pairs one worker's Tick response with any routing/handler
// error, for tick_all's per-item result mapping.
type TickOutcome struct {
	Result market.TickResult
	Err    error
}

// Pool is the dispatcher: it owns no market state directly, only the
// registry of item id -> *market.Worker and the restart policy.
type Pool struct {
	cfg   config.Config
	clock priceengine.Clock
	rng   priceengine.RNG

	mu            sync.RWMutex
	workers       map[string]*market.Worker
	backoffs      map[string]*backoff.ExponentialBackOff
	restartsTotal int
	stopped       bool
}

// New returns an empty pool driven by the given clock/rng collaborators
// and configured from cfg (restart backoff reproduces
// min(100ms*2^n, 10s) via an ExponentialBackOff with RandomizationFactor
// zeroed out so the sequence is deterministic).
func New(cfg config.Config, clock priceengine.Clock, rng priceengine.RNG) *Pool {
	return &Pool{
		cfg:      cfg,
		clock:    clock,
		rng:      rng,
		workers:  make(map[string]*market.Worker),
		backoffs: make(map[string]*backoff.ExponentialBackOff),
	}
}

// Spawn creates and starts a worker for itemID at initialPrice.
// Idempotent: a second spawn for an already-registered item is a no-op.
func (p *Pool) Spawn(itemID string, initialPrice float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return apperr.New(apperr.WorkerUnavailable, "pool is stopped")
	}
	if _, exists := p.workers[itemID]; exists {
		return nil
	}

	w := market.New(itemID, initialPrice, p.cfg, p.clock, p.rng)
	w.Initialize(p.onCrash)
	p.workers[itemID] = w
	p.backoffs[itemID] = newRestartBackoff()
	return nil
}

// Remove gracefully stops and deletes itemID's worker. A no-op if absent.
func (p *Pool) Remove(itemID string) {
	p.mu.Lock()
	w, exists := p.workers[itemID]
	if !exists {
		p.mu.Unlock()
		return
	}
	delete(p.workers, itemID)
	delete(p.backoffs, itemID)
	p.mu.Unlock()

	w.Stop()
}

func (p *Pool) lookup(itemID string) (*market.Worker, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	w, ok := p.workers[itemID]
	if !ok {
		return nil, apperr.Newf(apperr.NoWorker, "no worker for item %s", itemID)
	}
	return w, nil
}

// Submit routes order to itemID's worker.
func (p *Pool) Submit(itemID string, order market.OrderRequest) (market.SubmitResult, error) {
	w, err := p.lookup(itemID)
	if err != nil {
		return market.SubmitResult{}, err
	}
	return w.Submit(order)
}

// Cancel routes by itemID.
func (p *Pool) Cancel(itemID, orderID string) error {
	w, err := p.lookup(itemID)
	if err != nil {
		return err
	}
	return w.Cancel(orderID)
}

// GetOrderBook routes by itemID.
func (p *Pool) GetOrderBook(itemID string) (orderbook.Snapshot, error) {
	w, err := p.lookup(itemID)
	if err != nil {
		return orderbook.Snapshot{}, err
	}
	return w.GetOrderBook()
}

// Tick routes a single Tick by itemID.
func (p *Pool) Tick(itemID string) (market.TickResult, error) {
	w, err := p.lookup(itemID)
	if err != nil {
		return market.TickResult{}, err
	}
	return w.Tick()
}

// MarketInfo routes by itemID.
func (p *Pool) MarketInfo(itemID string) (market.MarketInfo, error) {
	w, err := p.lookup(itemID)
	if err != nil {
		return market.MarketInfo{}, err
	}
	return w.MarketInfo()
}

// AccountSnapshot routes by itemID, reading playerID's slice of the
// ledger owned by that item's worker.
func (p *Pool) AccountSnapshot(itemID, playerID string) (ledger.Account, error) {
	w, err := p.lookup(itemID)
	if err != nil {
		return ledger.Account{}, err
	}
	return w.AccountSnapshot(playerID)
}

// TickAll issues Tick to every registered worker in parallel and collects
// every response before returning, keyed by item id. No cross-worker
// ordering is implied (spec section 4.6): this is a barrier, not a
// pipeline, returning only once every worker has answered.
func (p *Pool) TickAll() map[string]TickOutcome {
	p.mu.RLock()
	items := make(map[string]*market.Worker, len(p.workers))
	for id, w := range p.workers {
		items[id] = w
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	out := make(map[string]TickOutcome, len(items))

	for id, w := range items {
		wg.Add(1)
		go func(itemID string, worker *market.Worker) {
			defer wg.Done()
			result, err := worker.Tick()
			mu.Lock()
			out[itemID] = TickOutcome{Result: result, Err: err}
			mu.Unlock()
		}(id, w)
	}
	wg.Wait()

	return out
}

// ItemIDs returns a snapshot of registered item ids.
func (p *Pool) ItemIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.workers))
	for id := range p.workers {
		ids = append(ids, id)
	}
	return ids
}

// ActiveWorkers returns the number of registered workers still in the
// running state.
func (p *Pool) ActiveWorkers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, w := range p.workers {
		if w.Status() == market.StatusRunning {
			n++
		}
	}
	return n
}

// RestartsTotal returns the cumulative count of successful crash
// restarts performed by this pool.
func (p *Pool) RestartsTotal() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.restartsTotal
}

// Stop stops every worker, awaiting each, and marks the pool so no
// further spawns or restarts are accepted.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	workers := make([]*market.Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(worker *market.Worker) {
			defer wg.Done()
			worker.Stop()
		}(w)
	}
	wg.Wait()
}

// onCrash is invoked from a crashed worker's own goroutine. It schedules
// a restart after this item's next backoff interval
// (min(100ms*2^n, 10s), n = crash count) without wiping the worker's
// book/engine/ledger state (spec section 4.5).
func (p *Pool) onCrash(itemID string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	w, exists := p.workers[itemID]
	if !exists {
		p.mu.Unlock()
		return
	}
	bo, ok := p.backoffs[itemID]
	if !ok {
		bo = newRestartBackoff()
		p.backoffs[itemID] = bo
	}
	delay := bo.NextBackOff()
	p.mu.Unlock()

	go func() {
		time.Sleep(delay)

		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return
		}
		p.restartsTotal++
		p.mu.Unlock()

		w.Initialize(p.onCrash)
	}()
}

// newRestartBackoff builds the exponential sequence
// 100ms, 200ms, 400ms, ... capped at 10s, with no jitter so restart
// timing is deterministic and testable.
func newRestartBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
