package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warsan/imposter-game-backend/internal/registry"
	"github.com/warsan/imposter-game-backend/internal/session"
	"github.com/warsan/imposter-game-backend/internal/stats"
	"github.com/warsan/imposter-game-backend/internal/ws"
)

func newTestServer(t *testing.T) (http.Handler, *stats.MemoryStore) {
	t.Helper()
	gw := ws.NewGateway(nil)
	store := stats.NewMemoryStore()
	reg := registry.New(context.Background(), registry.Deps{
		Chat:  gw,
		Stats: stats.NewAccrual(store, nil),
		Settings: session.Settings{
			LobbyWait: 10 * time.Second,
		},
	})
	t.Cleanup(reg.Shutdown)
	return SetupRoutes(reg, gw, store, nil), store
}

func TestCreateGame(t *testing.T) {
	h, _ := newTestServer(t)

	body := `{"group_id":"g1","host_id":"h1","required_players":5}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/games", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"phase":"lobby"`)

	// second lobby for the same group conflicts
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/games", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateGame_BadPlayerCount(t *testing.T) {
	h, _ := newTestServer(t)

	body := `{"group_id":"g1","host_id":"h1","required_players":2}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/games", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGameState(t *testing.T) {
	h, _ := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/games/g1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := `{"group_id":"g1","host_id":"h1","required_players":4}`
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/games", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/games/g1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"day":1`)
}

func TestAbortGame_HostOnly(t *testing.T) {
	h, _ := newTestServer(t)

	body := `{"group_id":"g1","host_id":"h1","required_players":4}`
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/games", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/games/g1?actor=imposter", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/games/g1?actor=h1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUserStatsAndLeaderboard(t *testing.T) {
	h, store := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats/u1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, store.Update(context.Background(), "u1", stats.Patch{}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats/u1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1")
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
