package stats

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warsan/imposter-game-backend/internal/engine"
)

// XP amounts. Adversary wins carry the extra bonus: the minority role runs
// the higher risk.
const (
	XPParticipation  = 10
	XPWinBonus       = 25
	XPAdversaryBonus = 35
	XPPerLevel       = 100
)

// Accrual pushes end-of-game deltas to the store. A failure for one player
// never blocks the rest.
type Accrual struct {
	store Store
	log   *zap.Logger
}

func NewAccrual(store Store, log *zap.Logger) *Accrual {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accrual{store: store, log: log}
}

// RecordDisplayName captures a player's current display name, so the
// leaderboard can render it later.
func (a *Accrual) RecordDisplayName(ctx context.Context, userID, name string) {
	if err := a.store.Update(ctx, userID, Patch{DisplayName: ptr(name)}); err != nil {
		a.log.Warn("record display name failed", zap.String("user", userID), zap.Error(err))
	}
}

// RecordGameResult updates every original participant, winners and losers
// alike. Players are processed independently; per-player failures are logged
// and skipped.
func (a *Accrual) RecordGameResult(ctx context.Context, players []string, factions map[string]engine.Faction, winner engine.Winner) {
	var g errgroup.Group
	g.SetLimit(4)
	for _, id := range players {
		id := id
		g.Go(func() error {
			if err := a.recordOne(ctx, id, factions[id], winner); err != nil {
				a.log.Warn("stats update failed", zap.String("user", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Accrual) recordOne(ctx context.Context, userID string, faction engine.Faction, winner engine.Winner) error {
	cur, _, err := a.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	isAdversary := faction == engine.FactionAdversary
	won := (isAdversary && winner == engine.WinnerAdversaries) ||
		(!isAdversary && winner == engine.WinnerRegulars)

	xp := XPParticipation
	if won {
		xp += XPWinBonus
		if isAdversary {
			xp += XPAdversaryBonus
		}
	}

	patch := Patch{
		GamesPlayed: ptr(cur.GamesPlayed + 1),
		XP:          ptr(cur.XP + xp),
	}
	if won {
		patch.Wins = ptr(cur.Wins + 1)
		if isAdversary {
			patch.AdversaryWins = ptr(cur.AdversaryWins + 1)
		} else {
			patch.RegularWins = ptr(cur.RegularWins + 1)
		}
	} else {
		patch.Losses = ptr(cur.Losses + 1)
	}

	return a.store.Update(ctx, userID, patch)
}
