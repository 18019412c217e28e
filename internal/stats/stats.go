// Package stats keeps per-user win/loss/XP records and computes the
// end-of-game deltas.
package stats

import "context"

// Stats is one user's persistent record.
type Stats struct {
	UserID        string `json:"userId" gorm:"primaryKey;column:user_id"`
	DisplayName   string `json:"displayName"`
	GamesPlayed   int    `json:"gamesPlayed"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	AdversaryWins int    `json:"adversaryWins"`
	RegularWins   int    `json:"regularWins"`
	XP            int    `json:"xp" gorm:"column:xp"`
	Level         int    `json:"level"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	DisplayName   *string
	GamesPlayed   *int
	Wins          *int
	Losses        *int
	AdversaryWins *int
	RegularWins   *int
	XP            *int
}

// Store is the persistence contract. Get reports absence through the bool,
// not an error. Update creates the row when missing.
type Store interface {
	Get(ctx context.Context, userID string) (Stats, bool, error)
	Update(ctx context.Context, userID string, patch Patch) error
	Leaderboard(ctx context.Context, limit int) ([]Stats, error)
}

func ptr[T any](v T) *T { return &v }
