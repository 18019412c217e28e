package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warsan/imposter-game-backend/internal/registry"
	"github.com/warsan/imposter-game-backend/internal/stats"
	"github.com/warsan/imposter-game-backend/internal/ws"
)

func SetupRoutes(reg *registry.Registry, gw *ws.Gateway, store stats.Store, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/games", CreateGame(reg))
	r.Get("/games/{groupID}", GameState(reg))
	r.Delete("/games/{groupID}", AbortGame(reg))
	r.Get("/stats/{userID}", UserStats(store))
	r.Get("/leaderboard", Leaderboard(store))
	r.Get("/ws", ws.Handler(reg, gw, log))
	r.Get("/healthz", Healthz)
	return r
}
