package engine

import "slices"

// Outcome is the result of tallying one voting round. Exactly one of the
// following holds: Eliminated is set (strict plurality winner), Tied holds
// two or more IDs (revote needed), or both are empty (no votes cast).
type Outcome struct {
	Eliminated string
	Tied       []string
	Counts     map[string]int
}

func (o Outcome) NoVotes() bool {
	return o.Eliminated == "" && len(o.Tied) == 0
}

// Tally counts votes by target and finds the maximum. A single target at the
// maximum is eliminated; several targets sharing it form the tie set.
func Tally(votes map[string]string) Outcome {
	counts := make(map[string]int, len(votes))
	for _, target := range votes {
		counts[target]++
	}

	max := 0
	var top []string
	for id, n := range counts {
		switch {
		case n > max:
			max = n
			top = []string{id}
		case n == max:
			top = append(top, id)
		}
	}

	out := Outcome{Counts: counts}
	switch len(top) {
	case 0:
	case 1:
		out.Eliminated = top[0]
	default:
		slices.Sort(top)
		out.Tied = top
	}
	return out
}
