// Package market implements the per-instrument worker (spec component
// C5): one owner of a book, a price engine, and a ledger registry slice,
// serving a tagged request/response protocol from a single serial inbox
// goroutine. This collapses the several concurrency idioms the original
// conflated (section 9's redesign note) into one actor discipline: no
// method on Worker ever touches book/engine/ledger state directly from
// the caller's goroutine, only by round-tripping through the inbox.
package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/stllok/kurumisan-stock-game/internal/apperr"
	"github.com/stllok/kurumisan-stock-game/internal/config"
	"github.com/stllok/kurumisan-stock-game/internal/ledger"
	"github.com/stllok/kurumisan-stock-game/internal/orderbook"
	"github.com/stllok/kurumisan-stock-game/internal/priceengine"
)

// Status is the worker's lifecycle state (spec section 3).
type Status int

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusCrashed
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// OrderRequest is the Submit payload: the facade's validated view of an
// incoming order, before it becomes an orderbook.Order.
type OrderRequest struct {
	OrderID  string
	PlayerID string
	Side     orderbook.Side
	Kind     orderbook.Kind
	Price    float64
	Quantity float64
}

// SubmitResult is the Submit response. Trades is always empty: spec
// section 4.5 is explicit that no matching occurs on submission.
type SubmitResult struct {
	OrderID string
	Trades  []orderbook.Trade
}

// TickResult is the Tick response.
type TickResult struct {
	Trades       []orderbook.Trade
	CurrentPrice float64
}

// MarketInfo is a read-only view of an instrument's current pricing.
type MarketInfo struct {
	ItemID       string
	CurrentPrice float64
	BestBid      float64
	HasBestBid   bool
	BestAsk      float64
	HasBestAsk   bool
	Volatility   float64
}

type requestKind int

const (
	reqSubmit requestKind = iota
	reqCancel
	reqGetOrderBook
	reqTick
	reqMarketInfo
	reqAccountSnapshot
)

type request struct {
	kind     requestKind
	order    OrderRequest
	orderID  string
	playerID string
	reply    chan response
}

type response struct {
	err     error
	submit  SubmitResult
	book    orderbook.Snapshot
	tick    TickResult
	market  MarketInfo
	account ledger.Account
}

// Worker is one instrument's actor.
type Worker struct {
	ItemID string

	clock priceengine.Clock
	rng   priceengine.RNG

	// requestTimeout bounds a single send() round trip (spec section 5's
	// "default 5s"). Zero disables the bound.
	requestTimeout time.Duration

	mu              sync.Mutex
	status          Status
	crashCount      int
	lastCrashTimeMS int64
	lifecycle       chan struct{}
	onCrash         func(itemID string)

	book   *orderbook.Book
	engine *priceengine.State
	ledger *ledger.Registry

	orderPlayers map[string]string

	inbox chan request
}

// New builds a stopped Worker for itemID at initialPrice, configured
// from cfg (section 6's option table) and driven by the given clock/rng
// collaborators (spec section 6's clock.now()/rng.uniform01()).
func New(itemID string, initialPrice float64, cfg config.Config, clock priceengine.Clock, rng priceengine.RNG) *Worker {
	engine := priceengine.NewState(itemID, initialPrice, cfg.Drift, cfg.Volatility, cfg.TimeStep, cfg.BaseAdjustment, cfg.PressureFactor, cfg.TimeWindowMS)
	engine.Floor = cfg.PriceFloor
	return &Worker{
		ItemID:         itemID,
		clock:          clock,
		rng:            rng,
		requestTimeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		status:         StatusStopped,
		book:           orderbook.New(),
		engine:         engine,
		ledger:         ledger.NewRegistry(cfg.StartingBalance),
		orderPlayers:   make(map[string]string),
		inbox:          make(chan request),
	}
}

// Status reports the worker's current lifecycle state.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// CrashCount reports how many times this worker has crashed.
func (w *Worker) CrashCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.crashCount
}

// Initialize starts the worker's inbox-consumer goroutine: stopped (or
// crashed) → starting → running. Idempotent while already starting or
// running. Book, engine and ledger state survive across a crashed →
// starting transition (spec section 4.5: "restart does not wipe state").
// onCrash, if non-nil, is invoked the moment the worker transitions to
// crashed — either from its own goroutine (a panic mid-request) or from
// a caller's goroutine giving up on a timed-out send() — so a pool can
// schedule a restart either way.
func (w *Worker) Initialize(onCrash func(itemID string)) {
	w.mu.Lock()
	if w.status == StatusStarting || w.status == StatusRunning {
		w.mu.Unlock()
		return
	}
	w.status = StatusStarting
	life := make(chan struct{})
	w.lifecycle = life
	w.onCrash = onCrash
	w.mu.Unlock()

	ready := make(chan struct{})
	go w.run(onCrash, life, ready)
	<-ready
}

// Stop gracefully drains and halts the worker: running → stopping →
// stopped. A stopped worker cannot be restarted; callers that want to
// keep the item alive use crash/restart via Initialize instead.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.status != StatusRunning {
		w.mu.Unlock()
		return
	}
	w.status = StatusStopping
	inbox := w.inbox
	w.mu.Unlock()
	close(inbox)
}

func (w *Worker) run(onCrash func(string), life chan struct{}, ready chan struct{}) {
	w.mu.Lock()
	w.status = StatusRunning
	w.mu.Unlock()
	close(ready)

	crashed := false
	for req := range w.inbox {
		resp, didCrash := w.safeProcess(req)
		req.reply <- resp
		if didCrash {
			crashed = true
			break
		}
	}

	if crashed {
		w.drainCrashed()
	} else {
		w.mu.Lock()
		w.status = StatusStopped
		w.mu.Unlock()
	}
	close(life)
	if crashed && onCrash != nil {
		onCrash(w.ItemID)
	}
}

// drainCrashed answers every request still sitting in the inbox with
// WORKER_UNAVAILABLE once the run loop has given up (spec section 4.5:
// "a request in flight at crash time fails with WORKER_UNAVAILABLE").
func (w *Worker) drainCrashed() {
	for {
		select {
		case req := <-w.inbox:
			req.reply <- response{err: apperr.Newf(apperr.WorkerUnavailable, "worker %s crashed", w.ItemID)}
		default:
			return
		}
	}
}

func (w *Worker) safeProcess(req request) (resp response, crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			w.mu.Lock()
			w.status = StatusCrashed
			w.crashCount++
			w.lastCrashTimeMS = w.clock.NowMS()
			w.mu.Unlock()
			resp = response{err: apperr.Newf(apperr.WorkerUnavailable, "worker %s crashed: %v", w.ItemID, r)}
			crashed = true
		}
	}()
	resp = w.process(req)
	return resp, false
}

func (w *Worker) process(req request) response {
	switch req.kind {
	case reqSubmit:
		result, err := w.handleSubmit(req.order)
		return response{submit: result, err: err}
	case reqCancel:
		return response{err: w.handleCancel(req.orderID)}
	case reqGetOrderBook:
		return response{book: w.book.Snapshot()}
	case reqTick:
		return response{tick: w.handleTick()}
	case reqMarketInfo:
		return response{market: w.handleMarketInfo()}
	case reqAccountSnapshot:
		return response{account: w.ledger.Snapshot(req.playerID)}
	default:
		panic(fmt.Sprintf("market: unreachable request kind %d", req.kind))
	}
}

// send round-trips req through the inbox, failing fast with
// WORKER_UNAVAILABLE if the worker is not running or dies mid-request,
// and with TIMEOUT if no reply arrives within requestTimeout (spec
// section 5's "default 5s... triggering the restart policy"). The
// deadline covers the whole round trip, not each half separately.
func (w *Worker) send(req request) response {
	w.mu.Lock()
	status := w.status
	life := w.lifecycle
	w.mu.Unlock()
	if status != StatusRunning || life == nil {
		return response{err: apperr.Newf(apperr.WorkerUnavailable, "worker %s is %s", w.ItemID, status)}
	}

	var deadline <-chan time.Time
	if w.requestTimeout > 0 {
		timer := time.NewTimer(w.requestTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case w.inbox <- req:
	case <-life:
		return response{err: apperr.Newf(apperr.WorkerUnavailable, "worker %s stopped before accepting request", w.ItemID)}
	case <-deadline:
		w.timeoutCrash()
		return response{err: apperr.Newf(apperr.Timeout, "worker %s did not accept request within %s", w.ItemID, w.requestTimeout)}
	}

	select {
	case resp := <-req.reply:
		return resp
	case <-life:
		return response{err: apperr.Newf(apperr.WorkerUnavailable, "worker %s crashed mid-request", w.ItemID)}
	case <-deadline:
		w.timeoutCrash()
		return response{err: apperr.Newf(apperr.Timeout, "worker %s did not reply within %s", w.ItemID, w.requestTimeout)}
	}
}

// timeoutCrash marks the worker crashed from the caller's side when a
// request blows its deadline, and schedules the same restart policy a
// panic-recovered crash would (spec section 5). It cannot stop whatever
// the worker's own goroutine is doing — Go has no preemptive goroutine
// kill — so a request that eventually does complete after its caller
// gave up on it still lands on book/engine/ledger; this is the accepted
// cost of a bounded-wait guarantee against a wedged worker, same as an
// http.Client timeout not killing the underlying round trip.
func (w *Worker) timeoutCrash() {
	w.mu.Lock()
	if w.status != StatusRunning {
		w.mu.Unlock()
		return
	}
	w.status = StatusCrashed
	w.crashCount++
	w.lastCrashTimeMS = w.clock.NowMS()
	onCrash := w.onCrash
	w.mu.Unlock()

	if onCrash != nil {
		onCrash(w.ItemID)
	}
}

// Submit reserves funds (buy) or inventory (sell) from the player's
// ledger and rests the order in the book. No matching occurs here (spec
// section 4.5).
func (w *Worker) Submit(o OrderRequest) (SubmitResult, error) {
	resp := w.send(request{kind: reqSubmit, order: o, reply: make(chan response, 1)})
	return resp.submit, resp.err
}

// Cancel removes a resting order and refunds its unfilled remainder.
func (w *Worker) Cancel(orderID string) error {
	resp := w.send(request{kind: reqCancel, orderID: orderID, reply: make(chan response, 1)})
	return resp.err
}

// GetOrderBook returns a priority-ordered snapshot of both sides.
func (w *Worker) GetOrderBook() (orderbook.Snapshot, error) {
	resp := w.send(request{kind: reqGetOrderBook, reply: make(chan response, 1)})
	return resp.book, resp.err
}

// Tick steps the price engine and runs the matcher, settling trades on
// both sides' ledgers.
func (w *Worker) Tick() (TickResult, error) {
	resp := w.send(request{kind: reqTick, reply: make(chan response, 1)})
	return resp.tick, resp.err
}

// MarketInfo returns the instrument's current price, best bid/ask and
// volatility.
func (w *Worker) MarketInfo() (MarketInfo, error) {
	resp := w.send(request{kind: reqMarketInfo, reply: make(chan response, 1)})
	return resp.market, resp.err
}

// AccountSnapshot returns a deep copy of playerID's balance/inventory as
// tracked by this instrument's ledger slice.
func (w *Worker) AccountSnapshot(playerID string) (ledger.Account, error) {
	resp := w.send(request{kind: reqAccountSnapshot, playerID: playerID, reply: make(chan response, 1)})
	return resp.account, resp.err
}

func (w *Worker) handleSubmit(o OrderRequest) (SubmitResult, error) {
	if o.Quantity <= 0 {
		return SubmitResult{}, apperr.New(apperr.Validation, "quantity must be positive")
	}
	if o.Kind == orderbook.Limit && o.Price <= 0 {
		return SubmitResult{}, apperr.New(apperr.Validation, "limit order requires a positive price")
	}

	reserved := reservePrice(o.Kind, o.Price, w.engine.CurrentPrice)
	if err := w.reserve(o.PlayerID, o.Side, reserved, o.Quantity); err != nil {
		return SubmitResult{}, err
	}

	ord := &orderbook.Order{
		ID:            o.OrderID,
		PlayerID:      o.PlayerID,
		ItemID:        w.ItemID,
		Side:          o.Side,
		Kind:          o.Kind,
		Price:         o.Price,
		Quantity:      o.Quantity,
		Timestamp:     w.clock.NowMS(),
		ReservedPrice: reserved,
	}
	if err := w.book.Add(ord); err != nil {
		w.refund(o.PlayerID, o.Side, reserved, o.Quantity)
		return SubmitResult{}, err
	}

	w.orderPlayers[o.OrderID] = o.PlayerID
	w.engine.RecordOrder(w.clock, priceEngineSide(o.Side), o.Quantity)

	return SubmitResult{OrderID: o.OrderID, Trades: nil}, nil
}

func (w *Worker) handleCancel(orderID string) error {
	ord, ok := w.book.Get(orderID)
	if !ok {
		return apperr.Newf(apperr.UnknownOrder, "no resting order %s", orderID)
	}
	w.book.Remove(orderID)
	w.refund(ord.PlayerID, ord.Side, ord.ReservedPrice, ord.Quantity)
	delete(w.orderPlayers, orderID)
	return nil
}

func (w *Worker) handleTick() TickResult {
	price := w.engine.Step(w.rng, w.clock)
	trades := w.book.Match()

	for _, tr := range trades {
		w.settle(tr.BuyOrderID, func(playerID string) error {
			return w.ledger.AdjustInventory(playerID, w.ItemID, tr.Quantity)
		})
		w.settle(tr.SellOrderID, func(playerID string) error {
			return w.ledger.AdjustBalance(playerID, tr.Quantity*tr.Price)
		})
	}

	return TickResult{Trades: trades, CurrentPrice: price}
}

// settle credits the counterparty named by orderID via apply, then
// forgets the order id once it no longer rests in the book (fully
// filled). apply crediting a ledger can never fail the non-negativity
// check, so an error from it is an internal bug: settle panics with an
// INVARIANT error, which crashes the worker.
func (w *Worker) settle(orderID string, apply func(playerID string) error) {
	playerID, ok := w.orderPlayers[orderID]
	if !ok {
		return
	}
	if err := apply(playerID); err != nil {
		panic(apperr.Wrap(apperr.Invariant, err, "settlement credit should never fail non-negativity"))
	}
	if _, stillResting := w.book.Get(orderID); !stillResting {
		delete(w.orderPlayers, orderID)
	}
}

func (w *Worker) handleMarketInfo() MarketInfo {
	bestBid, hasBid := w.book.BestBid()
	bestAsk, hasAsk := w.book.BestAsk()
	return MarketInfo{
		ItemID:       w.ItemID,
		CurrentPrice: w.engine.CurrentPrice,
		BestBid:      bestBid,
		HasBestBid:   hasBid,
		BestAsk:      bestAsk,
		HasBestAsk:   hasAsk,
		Volatility:   w.engine.Volatility,
	}
}

// reserve debits the reservation for a new order: reservedPrice*quantity
// off the buyer's balance, or quantity off the seller's inventory.
// reservedPrice must already be fixed by the caller (see reservePrice) —
// reserve never reads engine.CurrentPrice itself, so the amount debited
// here is exactly the amount refund must later credit back.
func (w *Worker) reserve(playerID string, side orderbook.Side, reservedPrice, quantity float64) error {
	switch side {
	case orderbook.Buy:
		return w.ledger.AdjustBalance(playerID, -reservedPrice*quantity)
	case orderbook.Sell:
		return w.ledger.AdjustInventory(playerID, w.ItemID, -quantity)
	default:
		panic(fmt.Sprintf("market: unreachable order side %d", side))
	}
}

// refund reverses a reserve call. reservedPrice must be the value stored
// on the order at submit time (Order.ReservedPrice), never a freshly
// read engine.CurrentPrice: current_price can have moved since submission
// for a resting market order, and re-deriving it here would refund a
// different amount than was actually reserved.
func (w *Worker) refund(playerID string, side orderbook.Side, reservedPrice, quantity float64) {
	switch side {
	case orderbook.Buy:
		_ = w.ledger.AdjustBalance(playerID, reservedPrice*quantity)
	case orderbook.Sell:
		_ = w.ledger.AdjustInventory(playerID, w.ItemID, quantity)
	default:
		panic(fmt.Sprintf("market: unreachable order side %d", side))
	}
}

// reservePrice is the reference price used to size a buy reservation at
// submit time: the order's own limit price, or the engine's current
// price for a market buy with no limit price of its own (spec section
// 4.5). Called exactly once, at submission; the result is stored on the
// order and never recomputed.
func reservePrice(kind orderbook.Kind, limitPrice, currentPrice float64) float64 {
	if kind == orderbook.Market {
		return currentPrice
	}
	return limitPrice
}

func priceEngineSide(s orderbook.Side) priceengine.Side {
	switch s {
	case orderbook.Buy:
		return priceengine.SideBuy
	case orderbook.Sell:
		return priceengine.SideSell
	default:
		panic(fmt.Sprintf("market: unreachable order side %d", s))
	}
}
