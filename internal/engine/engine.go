package engine

import (
	"errors"
	"math/rand"
	"slices"
)

var ErrBadPlayerCount = errors.New("player count out of range")

type Faction string

const (
	FactionAdversary Faction = "adversary"
	FactionRegular   Faction = "regular"
)

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseDiscussion Phase = "discussion"
	PhaseVoting     Phase = "voting"
	PhaseRevote     Phase = "revote"
	PhaseEnded      Phase = "ended"
)

type Winner string

const (
	WinnerNone        Winner = ""
	WinnerAdversaries Winner = "adversaries"
	WinnerRegulars    Winner = "regulars"
)

const (
	MinPlayers = 3
	MaxPlayers = 25
)

// AdversaryCount returns how many adversaries a game of the given size gets.
func AdversaryCount(players int) int {
	switch {
	case players <= 6:
		return 1
	case players <= 11:
		return 2
	case players <= 18:
		return 3
	default:
		return 4
	}
}

// DiscussionSeconds and VotingSeconds scale the countdowns with roster size.
func DiscussionSeconds(players int) int {
	switch {
	case players <= 6:
		return 30
	case players <= 11:
		return 60
	default:
		return 200
	}
}

func VotingSeconds(players int) int {
	switch {
	case players <= 6:
		return 60
	case players <= 11:
		return 90
	default:
		return 120
	}
}

type Assignment struct {
	Factions    map[string]Faction
	Adversaries []string
}

// AssignFactions shuffles the roster with a Fisher-Yates shuffle and takes
// the first AdversaryCount players as adversaries. The input slice is not
// mutated.
func AssignFactions(players []string, rng *rand.Rand) (Assignment, error) {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return Assignment{}, ErrBadPlayerCount
	}

	shuffled := slices.Clone(players)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	n := AdversaryCount(len(players))
	a := Assignment{
		Factions:    make(map[string]Faction, len(players)),
		Adversaries: slices.Clone(shuffled[:n]),
	}
	for i, id := range shuffled {
		if i < n {
			a.Factions[id] = FactionAdversary
		} else {
			a.Factions[id] = FactionRegular
		}
	}
	return a, nil
}

// EvaluateWin applies the terminal conditions to the living roster: no
// adversaries left means the regulars win; adversaries matching or
// outnumbering the remaining regulars means the adversaries win.
func EvaluateWin(alive []string, factions map[string]Faction) Winner {
	var a, r int
	for _, id := range alive {
		if factions[id] == FactionAdversary {
			a++
		} else {
			r++
		}
	}
	switch {
	case a == 0:
		return WinnerRegulars
	case a >= r:
		return WinnerAdversaries
	default:
		return WinnerNone
	}
}

// EligibleVoters returns who may cast a vote this phase. During a revote the
// tied candidates sit out.
func EligibleVoters(alive []string, phase Phase, tied []string) []string {
	if phase != PhaseRevote {
		return slices.Clone(alive)
	}
	voters := make([]string, 0, len(alive))
	for _, id := range alive {
		if !slices.Contains(tied, id) {
			voters = append(voters, id)
		}
	}
	return voters
}
