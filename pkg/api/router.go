package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stllok/kurumisan-stock-game/pkg/handlers"
	"github.com/stllok/kurumisan-stock-game/pkg/obs"
)

func New(router fiber.Router, handler *handlers.Handler, obs *obs.Client) {
	router.Use(requestIDMiddleware)

	router.Post("/sessions", handler.CreateSession)

	orders := router.Group("/orders")
	orders.Post("/", handler.SubmitOrder)
	orders.Post("/cancel", handler.CancelOrder)

	router.Get("/books/:itemId", handler.GetOrderBook)
	router.Get("/markets/:itemId", handler.GetMarket)
	router.Get("/accounts/:playerId", handler.GetAccount)

	router.Get("/stream", handler.StreamMarket)
	router.Get("/metrics", handler.Metrics)
}
