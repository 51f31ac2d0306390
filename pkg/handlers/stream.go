package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/stllok/kurumisan-stock-game/internal/coordinator"
	"github.com/stllok/kurumisan-stock-game/schemas"
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const streamWriteTimeout = 5 * time.Second

// StreamMarket upgrades GET /stream?items=A,B to a websocket connection
// relaying coordinator.MarketUpdate events, mirroring the teacher's fiber
// handlers wired through a net/http bridge (fasthttpadaptor) since the
// streaming primitive here is gorilla/websocket rather than fiber's own
// fasthttp-native websocket support.
func (h *Handler) StreamMarket(c *fiber.Ctx) error {
	var itemIDs []string
	if raw := c.Query("items"); raw != "" {
		itemIDs = strings.Split(raw, ",")
	}

	adaptor := fasthttpadaptor.NewFastHTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.serveMarketStream(itemIDs, w, r)
	}))
	adaptor(c.Context())
	return nil
}

func (h *Handler) serveMarketStream(itemIDs []string, w http.ResponseWriter, r *http.Request) {
	ctx := context.Background()
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.obs.LogErr(ctx, "stream.upgrade failed: err=%v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.coord.Subscribe(itemIDs)
	if err != nil {
		h.obs.LogErr(ctx, "stream.subscribe failed: err=%v", err)
		return
	}
	defer cancel()

	for update := range updates {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(toMarketUpdateEvent(update)); err != nil {
			return
		}
	}
}

func toMarketUpdateEvent(u coordinator.MarketUpdate) schemas.MarketUpdateEvent {
	event := schemas.MarketUpdateEvent{
		Type:         string(u.Type),
		ItemID:       u.ItemID,
		CurrentPrice: decimal.NewFromFloat(u.CurrentPrice),
		BestBid:      decimal.NewFromFloat(u.BestBid),
		HasBestBid:   u.HasBestBid,
		BestAsk:      decimal.NewFromFloat(u.BestAsk),
		HasBestAsk:   u.HasBestAsk,
		TimestampMS:  u.TimestampMS,
	}
	if u.Candle != nil {
		event.High = decimal.NewFromFloat(u.Candle.High)
		event.Low = decimal.NewFromFloat(u.Candle.Low)
		event.Volume = decimal.NewFromFloat(u.Candle.Volume)
	}
	return event
}
