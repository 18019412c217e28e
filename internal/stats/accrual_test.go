package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warsan/imposter-game-backend/internal/engine"
)

func fiveBySingleAdversary() ([]string, map[string]engine.Faction) {
	players := []string{"a1", "r1", "r2", "r3", "r4"}
	factions := map[string]engine.Faction{
		"a1": engine.FactionAdversary,
		"r1": engine.FactionRegular,
		"r2": engine.FactionRegular,
		"r3": engine.FactionRegular,
		"r4": engine.FactionRegular,
	}
	return players, factions
}

func TestAccrual_AdversaryWin(t *testing.T) {
	store := NewMemoryStore()
	players, factions := fiveBySingleAdversary()

	NewAccrual(store, nil).RecordGameResult(context.Background(), players, factions, engine.WinnerAdversaries)

	winner, ok, err := store.Get(context.Background(), "a1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, winner.GamesPlayed)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 0, winner.Losses)
	assert.Equal(t, 1, winner.AdversaryWins)
	assert.Equal(t, 0, winner.RegularWins)
	assert.Equal(t, XPParticipation+XPWinBonus+XPAdversaryBonus, winner.XP)

	for _, id := range players[1:] {
		loser, ok, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, loser.GamesPlayed)
		assert.Equal(t, 0, loser.Wins)
		assert.Equal(t, 1, loser.Losses)
		assert.Equal(t, XPParticipation, loser.XP, "losers get participation XP only")
	}
}

func TestAccrual_RegularsWin(t *testing.T) {
	store := NewMemoryStore()
	players, factions := fiveBySingleAdversary()

	NewAccrual(store, nil).RecordGameResult(context.Background(), players, factions, engine.WinnerRegulars)

	loser, _, err := store.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, loser.Losses)
	assert.Equal(t, XPParticipation, loser.XP)

	winner, _, err := store.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 1, winner.RegularWins)
	assert.Equal(t, 0, winner.AdversaryWins)
	assert.Equal(t, XPParticipation+XPWinBonus, winner.XP)
}

func TestAccrual_AccumulatesAcrossGames(t *testing.T) {
	store := NewMemoryStore()
	players, factions := fiveBySingleAdversary()
	a := NewAccrual(store, nil)

	a.RecordGameResult(context.Background(), players, factions, engine.WinnerRegulars)
	a.RecordGameResult(context.Background(), players, factions, engine.WinnerAdversaries)

	s, _, err := store.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.GamesPlayed)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 2*XPParticipation+XPWinBonus, s.XP)
}

// failingStore rejects updates for one user to prove a partial failure does
// not block the rest of the roster.
type failingStore struct {
	*MemoryStore
	failUser string
}

func (f *failingStore) Update(ctx context.Context, userID string, patch Patch) error {
	if userID == f.failUser {
		return errors.New("store unavailable")
	}
	return f.MemoryStore.Update(ctx, userID, patch)
}

func TestAccrual_PartialFailureDoesNotBlockOthers(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), failUser: "r2"}
	players, factions := fiveBySingleAdversary()

	NewAccrual(store, nil).RecordGameResult(context.Background(), players, factions, engine.WinnerRegulars)

	_, ok, err := store.Get(context.Background(), "r2")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, id := range []string{"a1", "r1", "r3", "r4"} {
		s, ok, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		require.Truef(t, ok, "user %s should still be updated", id)
		assert.Equal(t, 1, s.GamesPlayed)
	}
}

func TestMemoryStore_LevelDerivedFromXP(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Update(context.Background(), "u1", Patch{XP: ptr(250)}))

	s, _, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Level)
}

func TestMemoryStore_LeaderboardOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, "low", Patch{Wins: ptr(1), XP: ptr(50)}))
	require.NoError(t, store.Update(ctx, "high", Patch{Wins: ptr(5), XP: ptr(10)}))
	require.NoError(t, store.Update(ctx, "mid", Patch{Wins: ptr(1), XP: ptr(90)}))

	top, err := store.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "high", top[0].UserID)
	assert.Equal(t, "mid", top[1].UserID)
}

func TestAccrual_RecordDisplayName(t *testing.T) {
	store := NewMemoryStore()
	NewAccrual(store, nil).RecordDisplayName(context.Background(), "u1", "Ayaan")

	s, ok, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ayaan", s.DisplayName)
	assert.Zero(t, s.GamesPlayed)
}
