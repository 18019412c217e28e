package stats

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a mutex-guarded map store. It backs tests and serves as the
// fallback when no database is configured; records vanish on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]Stats)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (Stats, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.users[userID]
	return s, ok, nil
}

func (m *MemoryStore) Update(_ context.Context, userID string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.users[userID]
	if !ok {
		s = Stats{UserID: userID}
	}
	applyPatch(&s, patch)
	m.users[userID] = s
	return nil
}

func (m *MemoryStore) Leaderboard(_ context.Context, limit int) ([]Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Stats, 0, len(m.users))
	for _, s := range m.users {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].XP > out[j].XP
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func applyPatch(s *Stats, p Patch) {
	if p.DisplayName != nil {
		s.DisplayName = *p.DisplayName
	}
	if p.GamesPlayed != nil {
		s.GamesPlayed = *p.GamesPlayed
	}
	if p.Wins != nil {
		s.Wins = *p.Wins
	}
	if p.Losses != nil {
		s.Losses = *p.Losses
	}
	if p.AdversaryWins != nil {
		s.AdversaryWins = *p.AdversaryWins
	}
	if p.RegularWins != nil {
		s.RegularWins = *p.RegularWins
	}
	if p.XP != nil {
		s.XP = *p.XP
		s.Level = *p.XP / XPPerLevel
	}
}
