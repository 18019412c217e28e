package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warsan/imposter-game-backend/internal/engine"
	"github.com/warsan/imposter-game-backend/internal/registry"
	"github.com/warsan/imposter-game-backend/internal/stats"
)

type createGameRequest struct {
	GroupID         string `json:"group_id"`
	HostID          string `json:"host_id"`
	ChannelID       string `json:"channel_id"`
	RequiredPlayers int    `json:"required_players"`
}

func CreateGame(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.GroupID == "" || req.HostID == "" {
			http.Error(w, "group_id and host_id are required", http.StatusBadRequest)
			return
		}
		if req.ChannelID == "" {
			req.ChannelID = req.GroupID
		}

		sess, err := reg.Create(r.Context(), req.GroupID, req.HostID, req.ChannelID, req.RequiredPlayers)
		switch {
		case errors.Is(err, registry.ErrAlreadyActive):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case errors.Is(err, engine.ErrBadPlayerCount):
			http.Error(w, "required_players must be between 3 and 25", http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, "failed to create game", http.StatusInternalServerError)
			return
		}

		view, err := sess.State(r.Context())
		if err != nil {
			http.Error(w, "failed to read game state", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			GroupID string `json:"group_id"`
			Phase   string `json:"phase"`
		}{GroupID: view.GroupID, Phase: string(view.Phase)})
	}
}

func GameState(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := chi.URLParam(r, "groupID")
		sess := reg.Get(r.Context(), groupID)
		if sess == nil {
			http.Error(w, "no active game", http.StatusNotFound)
			return
		}
		view, err := sess.State(r.Context())
		if err != nil {
			http.Error(w, "no active game", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			GroupID string   `json:"group_id"`
			Phase   string   `json:"phase"`
			Day     int      `json:"day"`
			Players []string `json:"players"`
			Alive   []string `json:"alive"`
		}{view.GroupID, string(view.Phase), view.Day, view.Players, view.Alive})
	}
}

func AbortGame(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := chi.URLParam(r, "groupID")
		actorID := r.URL.Query().Get("actor")
		sess := reg.Get(r.Context(), groupID)
		if sess == nil {
			http.Error(w, "no active game", http.StatusNotFound)
			return
		}
		if err := sess.Abort(r.Context(), actorID); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func UserStats(store stats.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		s, ok, err := store.Get(r.Context(), userID)
		if err != nil {
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "no games played yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	}
}

func Leaderboard(store stats.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		top, err := store.Leaderboard(r.Context(), 10)
		if err != nil {
			http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(top)
	}
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
