package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/stllok/kurumisan-stock-game/internal/facade"
	"github.com/stllok/kurumisan-stock-game/internal/orderbook"
	"github.com/stllok/kurumisan-stock-game/schemas"
)

func (h *Handler) SubmitOrder(c *fiber.Ctx) error {
	var req schemas.SubmitOrderRequest
	ctx := c.UserContext()
	if err := c.BodyParser(&req); err != nil {
		h.obs.LogErr(ctx, "order.submit: invalid request body: %v", err)
		return badRequest(c, errors.New("invalid request body"))
	}
	if req.PlayerID == "" {
		return badRequest(c, errors.New("playerId is required"))
	}

	side, err := parseSide(req.Side)
	if err != nil {
		return badRequest(c, err)
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return badRequest(c, err)
	}

	price, _ := req.Price.Float64()
	quantity, _ := req.Quantity.Float64()

	h.obs.LogInfo(ctx, "order.submit: player=%s item=%s side=%s kind=%s price=%v quantity=%v", req.PlayerID, req.ItemID, req.Side, req.Kind, price, quantity)

	result, err := h.facade.SubmitOrder(req.PlayerID, facade.SubmitOrderRequest{
		ItemID:   req.ItemID,
		Side:     side,
		Kind:     kind,
		Price:    price,
		Quantity: quantity,
	})
	if err != nil {
		h.obs.LogErr(ctx, "order.submit failed: player=%s item=%s err=%v", req.PlayerID, req.ItemID, err)
		return apiError(c, err)
	}

	h.obs.LogInfo(ctx, "order.submit done: order_id=%s status=%s", result.OrderID, result.Status)
	return jsonResponse(c, fiber.StatusOK, schemas.SubmitOrderResponse{OrderID: result.OrderID, Status: result.Status})
}

func (h *Handler) CancelOrder(c *fiber.Ctx) error {
	var req schemas.CancelOrderRequest
	ctx := c.UserContext()
	if err := c.BodyParser(&req); err != nil {
		h.obs.LogErr(ctx, "order.cancel: invalid request body: %v", err)
		return badRequest(c, errors.New("invalid request body"))
	}
	if req.ItemID == "" || req.OrderID == "" {
		return badRequest(c, errors.New("itemId and orderId are required"))
	}

	if err := h.facade.CancelOrder(req.ItemID, req.OrderID); err != nil {
		h.obs.LogErr(ctx, "order.cancel failed: item=%s order=%s err=%v", req.ItemID, req.OrderID, err)
		return apiError(c, err)
	}

	h.obs.LogInfo(ctx, "order.cancel done: item=%s order=%s", req.ItemID, req.OrderID)
	return jsonResponse(c, fiber.StatusOK, schemas.CancelOrderResponse{OK: true})
}

func parseSide(s string) (orderbook.Side, error) {
	switch s {
	case "buy":
		return orderbook.Buy, nil
	case "sell":
		return orderbook.Sell, nil
	default:
		return 0, errors.New("side must be \"buy\" or \"sell\"")
	}
}

func parseKind(k string) (orderbook.Kind, error) {
	switch k {
	case "limit":
		return orderbook.Limit, nil
	case "market":
		return orderbook.Market, nil
	default:
		return 0, errors.New("kind must be \"limit\" or \"market\"")
	}
}
