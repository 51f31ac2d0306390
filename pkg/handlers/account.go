package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/stllok/kurumisan-stock-game/schemas"
)

// GetAccount answers GET /accounts/:playerId?itemId=X. An item id is
// required because each instrument worker owns a fully independent
// ledger registry: there is no single global balance to return without
// pinning which worker's books to read.
func (h *Handler) GetAccount(c *fiber.Ctx) error {
	playerID := c.Params("playerId")
	itemID := c.Query("itemId")
	ctx := c.UserContext()

	if itemID == "" {
		return badRequest(c, errMissingItemID)
	}

	acct, err := h.facade.GetAccount(itemID, playerID)
	if err != nil {
		h.obs.LogErr(ctx, "account.get failed: player=%s item=%s err=%v", playerID, itemID, err)
		return apiError(c, err)
	}

	inventory := make([]schemas.InventoryLine, 0, len(acct.Inventory))
	for item, qty := range acct.Inventory {
		inventory = append(inventory, schemas.InventoryLine{ItemID: item, Quantity: decimal.NewFromFloat(qty)})
	}

	return jsonResponse(c, fiber.StatusOK, schemas.AccountResponse{
		PlayerID:  acct.PlayerID,
		Balance:   decimal.NewFromFloat(acct.Balance),
		Inventory: inventory,
	})
}
