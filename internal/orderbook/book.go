package orderbook

import (
	"sort"
	"sync"

	"github.com/stllok/kurumisan-stock-game/internal/apperr"
	"github.com/stllok/kurumisan-stock-game/internal/bookheap"
)

// Book is one instrument's double-sided order book: two
// bookheap.Heap[*Order] instances (bids, asks) plus an id -> *Order index,
// matching invariants (I1)-(I3) of spec section 3.
//
// Like the teacher's OrderBook, a Book is owned exclusively by the worker
// that holds it; the mutex exists only to make Get/Snapshot safe to call
// from an inspection path concurrently with the owning worker's mutation,
// matching the teacher's sync.RWMutex discipline in pkg/orderbook/types.go.
type Book struct {
	mu   sync.RWMutex
	bids *bookheap.Heap[*Order]
	asks *bookheap.Heap[*Order]
	ids  map[string]*Order

	nextTradeID int64
}

// New returns an empty book.
func New() *Book {
	return &Book{
		bids: bookheap.New[*Order](bookheap.BidLess),
		asks: bookheap.New[*Order](bookheap.AskLess),
		ids:  make(map[string]*Order),
	}
}

func (b *Book) sideHeap(side Side) *bookheap.Heap[*Order] {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// Add places order in the correct heap by side and records it in the id
// index. Requires: limit orders have a positive price, quantity > 0, and
// the id is unique in this book.
func (b *Book) Add(o *Order) error {
	if o.Quantity <= 0 {
		return apperr.New(apperr.Validation, "order quantity must be positive")
	}
	if o.Kind == Limit && o.Price <= 0 {
		return apperr.New(apperr.Validation, "limit order requires a positive price")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.ids[o.ID]; exists {
		return apperr.Newf(apperr.Validation, "order id %s already present in book", o.ID)
	}

	o.Status = Pending
	b.sideHeap(o.Side).PushItem(o)
	b.ids[o.ID] = o
	return nil
}

// Remove removes order_id from its heap and the id index. Idempotent:
// returns false if the order is absent.
func (b *Book) Remove(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(orderID)
}

func (b *Book) removeLocked(orderID string) bool {
	order, ok := b.ids[orderID]
	if !ok {
		return false
	}
	delete(b.ids, orderID)
	b.sideHeap(order.Side).RemoveFirst(func(o *Order) bool { return o.ID == orderID })
	return true
}

// Get returns a snapshot copy of the order for orderID, or false if absent.
func (b *Book) Get(orderID string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	order, ok := b.ids[orderID]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// BestBid returns the highest resting bid price, if any.
func (b *Book) BestBid() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.bids.Peek()
	if !ok {
		return 0, false
	}
	return o.Price, true
}

// BestAsk returns the lowest resting ask price, if any.
func (b *Book) BestAsk() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.asks.Peek()
	if !ok {
		return 0, false
	}
	return o.Price, true
}

// Snapshot returns both sides in full price-time priority order.
func (b *Book) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids := b.bids.Snapshot()
	asks := b.asks.Snapshot()

	sort.Slice(bids, func(i, j int) bool { return higherPriority(bids[i], bids[j], true) })
	sort.Slice(asks, func(i, j int) bool { return higherPriority(asks[i], asks[j], false) })

	out := Snapshot{
		Bids: make([]Order, len(bids)),
		Asks: make([]Order, len(asks)),
	}
	for i, o := range bids {
		out.Bids[i] = *o
	}
	for i, o := range asks {
		out.Asks[i] = *o
	}
	return out
}

func higherPriority(a, b *Order, isBid bool) bool {
	pa, pb := a.HeapPrice(), b.HeapPrice()
	if pa == pb {
		return a.Timestamp < b.Timestamp
	}
	if isBid {
		return pa > pb
	}
	return pa < pb
}

// crosses reports whether the current best bid and ask cross: either side
// being a market order always crosses; two limits cross iff bid >= ask.
func crosses(bid, ask *Order) bool {
	if bid.Kind == Market || ask.Kind == Market {
		return true
	}
	return bid.Price >= ask.Price
}

// tradePrice determines the trade price per spec section 4.2 step 3: a
// market order takes the resting limit's price; two limits trade at the
// ask price (the resting side is privileged by convention, open question
// in spec section 9 resolved in favor of preserving this policy); two
// market orders have no reference price and must not match.
func tradePrice(bid, ask *Order) (float64, bool) {
	switch {
	case bid.Kind == Market && ask.Kind == Market:
		return 0, false
	case bid.Kind == Market:
		return ask.Price, true
	case ask.Kind == Market:
		return bid.Price, true
	default:
		return ask.Price, true
	}
}

// Match runs the crossing loop to completion and returns every trade
// produced, in emission order. Never fails: absence of crossing orders is
// a normal terminal state.
func (b *Book) Match() []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	var trades []Trade
	for {
		bid, ok := b.bids.Peek()
		if !ok {
			break
		}
		ask, ok := b.asks.Peek()
		if !ok {
			break
		}
		if !crosses(bid, ask) {
			break
		}
		price, ok := tradePrice(bid, ask)
		if !ok {
			// Both market orders: no reference price available from the
			// book alone. This combination does not occur in practice
			// (market orders match immediately against resting
			// liquidity) but must be treated as a stop, not a crash.
			break
		}

		quantity := min(bid.Quantity, ask.Quantity)
		trade := Trade{
			ID:          b.nextTradeIDLocked(),
			BuyOrderID:  bid.ID,
			SellOrderID: ask.ID,
			ItemID:      bid.ItemID,
			Quantity:    quantity,
			Price:       price,
			Timestamp:   laterOf(bid.Timestamp, ask.Timestamp),
		}
		trades = append(trades, trade)

		bid.Quantity -= quantity
		ask.Quantity -= quantity

		if bid.Quantity <= 0 {
			bid.Status = Filled
			b.removeLocked(bid.ID)
		} else {
			bid.Status = Partial
		}
		if ask.Quantity <= 0 {
			ask.Status = Filled
			b.removeLocked(ask.ID)
		} else {
			ask.Status = Partial
		}
	}
	return trades
}

func (b *Book) nextTradeIDLocked() int64 {
	b.nextTradeID++
	return b.nextTradeID
}

func laterOf(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
