// Package orderbook implements the double-sided limit order book (spec
// component C2): two bookheap.Heap instances plus an id index, price-time
// priority matching with partial fills, and market/limit crossing
// semantics. Generalized from the teacher's pkg/orderbook, which carried
// a single integer-cents book with no market orders and no matching loop
// of its own (matching there happened inline in PostLimit).
package orderbook

// Side is which side of the book an order rests on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Kind distinguishes a priced resting order from an immediate-execution
// market order.
type Kind int

const (
	Limit Kind = iota
	Market
)

// Status is the lifecycle state of an Order (spec section 3).
type Status int

const (
	Pending Status = iota
	Partial
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Partial:
		return "partial"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is a single resting or incoming order. Price is meaningless (and
// left zero) for Kind == Market.
type Order struct {
	ID        string
	PlayerID  string
	ItemID    string
	Side      Side
	Kind      Kind
	Quantity  float64
	Price     float64
	Timestamp int64
	Status    Status

	// ReservedPrice is the price-per-unit actually debited from the
	// buyer's balance at submit time (the order's own limit price, or
	// the engine's current price at that instant for a market buy). It
	// is fixed at submission and must be used verbatim to compute any
	// later refund — current_price can drift by the time a resting
	// market order is cancelled, and re-reading it would refund the
	// wrong amount. Unused for sell orders (inventory-denominated).
	ReservedPrice float64
}

// HeapPrice implements bookheap.Entry. A resting market order (one that
// found no opposing liquidity on submission and waits for later ticks)
// sorts as if it has the most aggressive possible price for its side, so
// it is always matched before any limit order at the same timestamp
// ordering tier.
func (o *Order) HeapPrice() float64 {
	if o.Kind == Market {
		if o.Side == Buy {
			return posInf
		}
		return negInf
	}
	return o.Price
}

func (o *Order) HeapTimestamp() int64 { return o.Timestamp }

const (
	posInf = float64(int64(1) << 62)
	negInf = -posInf
)

// Trade is an immutable fill record emitted by the matcher.
type Trade struct {
	ID         int64
	BuyOrderID string
	SellOrderID string
	ItemID     string
	Quantity   float64
	Price      float64
	Timestamp  int64
}

// Snapshot is a priority-ordered, read-only view of both sides of the book.
type Snapshot struct {
	Bids []Order
	Asks []Order
}
