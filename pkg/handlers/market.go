package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/stllok/kurumisan-stock-game/internal/orderbook"
	"github.com/stllok/kurumisan-stock-game/schemas"
)

func (h *Handler) GetOrderBook(c *fiber.Ctx) error {
	itemID := c.Params("itemId")
	ctx := c.UserContext()

	book, err := h.facade.GetOrderBook(itemID)
	if err != nil {
		h.obs.LogErr(ctx, "book.get failed: item=%s err=%v", itemID, err)
		return apiError(c, err)
	}

	return jsonResponse(c, fiber.StatusOK, schemas.OrderBookResponse{
		ItemID: itemID,
		Bids:   toOrderLevels(book.Bids),
		Asks:   toOrderLevels(book.Asks),
	})
}

func toOrderLevels(orders []orderbook.Order) []schemas.OrderLevel {
	levels := make([]schemas.OrderLevel, 0, len(orders))
	for _, o := range orders {
		levels = append(levels, schemas.OrderLevel{
			OrderID:  o.ID,
			PlayerID: o.PlayerID,
			Price:    decimal.NewFromFloat(o.Price),
			Quantity: decimal.NewFromFloat(o.Quantity),
			Status:   o.Status.String(),
		})
	}
	return levels
}

func (h *Handler) GetMarket(c *fiber.Ctx) error {
	itemID := c.Params("itemId")
	ctx := c.UserContext()

	info, err := h.facade.GetMarket(itemID)
	if err != nil {
		h.obs.LogErr(ctx, "market.get failed: item=%s err=%v", itemID, err)
		return apiError(c, err)
	}

	return jsonResponse(c, fiber.StatusOK, schemas.MarketResponse{
		ItemID:       info.ItemID,
		CurrentPrice: decimal.NewFromFloat(info.CurrentPrice),
		BestBid:      decimal.NewFromFloat(info.BestBid),
		HasBestBid:   info.HasBestBid,
		BestAsk:      decimal.NewFromFloat(info.BestAsk),
		HasBestAsk:   info.HasBestAsk,
		Volatility:   decimal.NewFromFloat(info.Volatility),
	})
}
