package coordinator

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// UpdateKind is the event discriminator of spec section 6's
// MarketUpdate payload.
type UpdateKind string

const (
	UpdateInit  UpdateKind = "init"
	UpdatePrice UpdateKind = "price"
	UpdateTrade UpdateKind = "trade"
)

// Candle is the rolling OHLC supplement folded into a MarketUpdate;
// see SPEC_FULL.md's candle-rollup feature. Nil when candle_ticks is
// disabled (<=0).
type Candle struct {
	High   float64
	Low    float64
	Volume float64
}

// MarketUpdate is the event payload published on the update bus (spec
// section 6).
type MarketUpdate struct {
	Type         UpdateKind
	ItemID       string
	CurrentPrice float64
	BestBid      float64
	HasBestBid   bool
	BestAsk      float64
	HasBestAsk   bool
	TimestampMS  int64
	Candle       *Candle
}

// subscriber is one registered consumer of the bus: a buffered channel
// plus an optional item-id allow-list (nil/empty means every item).
type subscriber struct {
	id      string
	itemIDs map[string]struct{}
	ch      chan MarketUpdate
}

func (s *subscriber) wants(itemID string) bool {
	if len(s.itemIDs) == 0 {
		return true
	}
	_, ok := s.itemIDs[itemID]
	return ok
}

// updateBus is the many-producer, many-consumer fan-out registry. Every
// tick-loop runner goroutine is a producer; every subscribed caller
// (e.g. a websocket connection) is a consumer with its own buffered
// channel, so one slow consumer never blocks another.
type updateBus struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

func newUpdateBus() *updateBus {
	return &updateBus{subs: make(map[string]*subscriber)}
}

func (b *updateBus) subscribe(itemIDs []string, capacity int) *subscriber {
	allow := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		allow[id] = struct{}{}
	}
	sub := &subscriber{
		id:      uuid.NewString(),
		itemIDs: allow,
		ch:      make(chan MarketUpdate, capacity),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

func (b *updateBus) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	delete(b.subs, sub.id)
	b.mu.Unlock()
}

// deliverTo sends one update directly to a single subscriber (used for
// the one-shot "init" event on attach), dropping it if the buffer is
// already full rather than blocking the subscribing caller.
func (b *updateBus) deliverTo(sub *subscriber, update MarketUpdate) {
	select {
	case sub.ch <- update:
	default:
	}
}

// publish fans update out to every subscriber that wants it. A full
// subscriber buffer is drained by one slot (drop-oldest) before the new
// event is enqueued, so a slow consumer loses history rather than
// stalling every publisher (spec section 4.7's back-pressure policy).
func (b *updateBus) publish(update MarketUpdate, broadcastCounter, droppedCounter prometheus.Counter) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.wants(update.ItemID) {
			continue
		}
		select {
		case sub.ch <- update:
			broadcastCounter.Inc()
		default:
			select {
			case <-sub.ch:
				droppedCounter.Inc()
			default:
			}
			select {
			case sub.ch <- update:
				broadcastCounter.Inc()
			default:
			}
		}
	}
}
