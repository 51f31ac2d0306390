package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/stllok/kurumisan-stock-game/internal/apperr"
	"github.com/stllok/kurumisan-stock-game/schemas"
)

var errMissingItemID = errors.New("itemId query parameter is required")

func jsonResponse(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(payload)
}

func badRequest(c *fiber.Ctx, err error) error {
	return jsonResponse(c, fiber.StatusBadRequest, schemas.ErrorResponse{Error: err.Error()})
}

// apiError maps an apperr.Kind (spec section 7's error taxonomy) onto
// the HTTP status a caller should react to, and answers with a typed
// ErrorResponse carrying the kind string so a caller can branch on it
// without parsing prose.
func apiError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status := fiber.StatusInternalServerError
	switch kind {
	case apperr.NoWorker, apperr.UnknownOrder:
		status = fiber.StatusNotFound
	case apperr.WorkerUnavailable:
		status = fiber.StatusServiceUnavailable
	case apperr.Timeout:
		status = fiber.StatusGatewayTimeout
	case apperr.Backpressure:
		status = fiber.StatusTooManyRequests
	case apperr.Validation:
		status = fiber.StatusBadRequest
	case apperr.InsufficientFunds, apperr.InsufficientInventory:
		status = fiber.StatusUnprocessableEntity
	case apperr.Invariant:
		status = fiber.StatusInternalServerError
	}
	return jsonResponse(c, status, schemas.ErrorResponse{Error: err.Error(), Kind: string(kind)})
}
