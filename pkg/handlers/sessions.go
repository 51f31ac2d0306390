package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stllok/kurumisan-stock-game/schemas"
)

func (h *Handler) CreateSession(c *fiber.Ctx) error {
	playerID := h.facade.CreateSession()
	h.obs.LogInfo(c.UserContext(), "session.create: player_id=%s", playerID)
	return jsonResponse(c, fiber.StatusOK, schemas.CreateSessionResponse{PlayerID: playerID})
}
