package handlers

import (
	"github.com/stllok/kurumisan-stock-game/internal/coordinator"
	"github.com/stllok/kurumisan-stock-game/internal/facade"
	"github.com/stllok/kurumisan-stock-game/pkg/obs"
)

// Handler binds the fiber routes onto the facade, mirroring the
// teacher's Handler shape (a thin struct wrapping the engine plus an
// obs.Client), generalized from one order book + replica coordinator to
// one facade + tick coordinator (for /stream and /metrics).
type Handler struct {
	facade *facade.Facade
	coord  *coordinator.Coordinator
	obs    *obs.Client
}

func New(f *facade.Facade, coord *coordinator.Coordinator, obsClient *obs.Client) *Handler {
	return &Handler{facade: f, coord: coord, obs: obsClient}
}
