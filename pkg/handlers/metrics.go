package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics serves GET /metrics for the coordinator's private registry,
// mirroring vega's promhttp.Handler() wiring (metrics/prometheus.go).
func (h *Handler) Metrics(c *fiber.Ctx) error {
	handler := promhttp.HandlerFor(h.coord.Registry(), promhttp.HandlerOpts{})
	fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
	return nil
}
