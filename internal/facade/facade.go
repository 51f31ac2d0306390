// Package facade implements the thin dispatch surface (spec component
// C8) that external collaborators talk to: the six operations of spec
// section 6, plus the minimal in-process player session registry the
// core cannot avoid owning (a player id must resolve to a per-item
// ledger entry somewhere; spec.md hands idle-session cleanup to an
// external collaborator, not session *creation*).
//
// SubmitOrder follows the same three steps the teacher's
// pkg/handlers/orders.go follows before it ever touches the order book:
// validate shape, pre-flight-check against known state, and only then
// forward to the engine — so a malformed request never reaches a worker,
// and a doomed-to-fail one costs only the read of the pre-flight check,
// never a submission.
package facade

import (
	"sync"

	"github.com/google/uuid"

	"github.com/stllok/kurumisan-stock-game/internal/apperr"
	"github.com/stllok/kurumisan-stock-game/internal/coordinator"
	"github.com/stllok/kurumisan-stock-game/internal/dispatch"
	"github.com/stllok/kurumisan-stock-game/internal/ledger"
	"github.com/stllok/kurumisan-stock-game/internal/market"
	"github.com/stllok/kurumisan-stock-game/internal/orderbook"
)

// SubmitOrderRequest is the facade's view of an incoming order, named
// by item id rather than worker handle.
type SubmitOrderRequest struct {
	ItemID   string
	Side     orderbook.Side
	Kind     orderbook.Kind
	Price    float64
	Quantity float64
}

// SubmitOrderResult mirrors spec section 6's submit_order response.
type SubmitOrderResult struct {
	OrderID string
	Status  string
}

const (
	statusAccepted = "accepted"
)

// Facade is the single entry point external collaborators (the HTTP/WS
// layer, a CLI, a test harness) use to reach the engine.
type Facade struct {
	pool    *dispatch.Pool
	coord   *coordinator.Coordinator
	idGen   func() string
	startBl float64

	mu       sync.Mutex
	sessions map[string]struct{}
}

// New builds a facade around an already-running pool/coordinator pair.
func New(pool *dispatch.Pool, coord *coordinator.Coordinator, startingBalance float64) *Facade {
	return &Facade{
		pool:     pool,
		coord:    coord,
		idGen:    uuid.NewString,
		startBl:  startingBalance,
		sessions: make(map[string]struct{}),
	}
}

// CreateSession mints a new player id. The starting balance is applied
// lazily: a ledger.Registry creates a fresh zero-balance-less account
// the first time any item worker sees the player id, at cfg's
// starting_balance (see internal/ledger). CreateSession's own job is
// just identity issuance.
func (f *Facade) CreateSession() string {
	playerID := f.idGen()
	f.mu.Lock()
	f.sessions[playerID] = struct{}{}
	f.mu.Unlock()
	return playerID
}

func (f *Facade) knowsSession(playerID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[playerID]
	return ok
}

// SubmitOrder validates shape, pre-flight-checks the player's known
// balance/inventory against the order's reservation requirement, then
// enqueues onto the coordinator's task queue and awaits the result. The
// pre-flight check is best-effort: it reads a snapshot that may be stale
// by the time the worker actually processes the request (another order
// from the same player could race it), so the worker's own try-apply
// reservation remains the authoritative check. This step exists only to
// reject obviously-doomed requests before they are enqueued as a
// submission (spec section 4.8c); the check itself reads the player's
// ledger slice (and, for a market buy, the current price) from the
// worker. Routing through f.coord.EnqueueOrder rather than
// calling f.pool.Submit directly means a full task queue surfaces as
// BACKPRESSURE and a crashed worker's retry policy (spec section 4.7/5)
// applies here exactly as it does to a tick-driven task.
func (f *Facade) SubmitOrder(playerID string, req SubmitOrderRequest) (SubmitOrderResult, error) {
	if !f.knowsSession(playerID) {
		return SubmitOrderResult{}, apperr.New(apperr.Validation, "unknown player session")
	}
	if err := validateOrderShape(req); err != nil {
		return SubmitOrderResult{}, err
	}

	if err := f.preflightCheck(playerID, req); err != nil {
		return SubmitOrderResult{}, err
	}

	orderID := f.idGen()
	reply, err := f.coord.EnqueueOrder(req.ItemID, market.OrderRequest{
		OrderID:  orderID,
		PlayerID: playerID,
		Side:     req.Side,
		Kind:     req.Kind,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		return SubmitOrderResult{}, err
	}

	result := <-reply
	if result.Err != nil {
		return SubmitOrderResult{}, result.Err
	}
	return SubmitOrderResult{OrderID: orderID, Status: statusAccepted}, nil
}

func validateOrderShape(req SubmitOrderRequest) error {
	if req.ItemID == "" {
		return apperr.New(apperr.Validation, "item id is required")
	}
	if req.Quantity <= 0 {
		return apperr.New(apperr.Validation, "quantity must be positive")
	}
	if req.Kind == orderbook.Limit && req.Price <= 0 {
		return apperr.New(apperr.Validation, "limit order requires a positive price")
	}
	return nil
}

// preflightCheck reads the player's current per-item ledger slice and
// the item's current price, then asks whether the reservation this
// order would need is affordable, without mutating anything. A worker
// that does not exist yet surfaces as NO_WORKER here exactly as it
// would on the real submit, so the caller sees one consistent error
// either way.
func (f *Facade) preflightCheck(playerID string, req SubmitOrderRequest) error {
	acct, err := f.pool.AccountSnapshot(req.ItemID, playerID)
	if err != nil {
		return err
	}

	switch req.Side {
	case orderbook.Buy:
		price := req.Price
		if req.Kind == orderbook.Market {
			info, err := f.pool.MarketInfo(req.ItemID)
			if err != nil {
				return err
			}
			price = info.CurrentPrice
		}
		if need := price * req.Quantity; acct.Balance < need {
			return apperr.Newf(apperr.InsufficientFunds, "balance %.2f insufficient for reservation %.2f", acct.Balance, need)
		}
	case orderbook.Sell:
		if acct.Inventory[req.ItemID] < req.Quantity {
			return apperr.Newf(apperr.InsufficientInventory, "inventory %.4f insufficient for quantity %.4f", acct.Inventory[req.ItemID], req.Quantity)
		}
	default:
		return apperr.Newf(apperr.Validation, "unknown order side %d", req.Side)
	}
	return nil
}

// CancelOrder routes a cancel to the owning item's worker.
func (f *Facade) CancelOrder(itemID, orderID string) error {
	return f.pool.Cancel(itemID, orderID)
}

// GetOrderBook returns itemID's current book snapshot.
func (f *Facade) GetOrderBook(itemID string) (orderbook.Snapshot, error) {
	return f.pool.GetOrderBook(itemID)
}

// GetMarket returns itemID's current market info (spec section 6).
func (f *Facade) GetMarket(itemID string) (market.MarketInfo, error) {
	return f.pool.MarketInfo(itemID)
}

// GetAccount returns playerID's ledger slice for itemID. Spec section
// 6's literal get_account(player_id) signature omits an item id; this
// facade requires one because each worker's ledger is independent (see
// DESIGN.md's Open Question resolution for internal/market).
func (f *Facade) GetAccount(itemID, playerID string) (ledger.Account, error) {
	if !f.knowsSession(playerID) {
		return ledger.Account{}, apperr.New(apperr.Validation, "unknown player session")
	}
	return f.pool.AccountSnapshot(itemID, playerID)
}

// SubscribeMarket opens an update-bus subscription for the given item
// ids (nil/empty subscribes to every item currently spawned).
func (f *Facade) SubscribeMarket(itemIDs []string) (<-chan coordinator.MarketUpdate, func(), error) {
	return f.coord.Subscribe(itemIDs)
}
