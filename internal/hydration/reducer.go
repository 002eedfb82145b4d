package hydration

import (
	"sort"

	"github.com/mirrormatch/cloudsync/internal/realtime"
	"github.com/mirrormatch/cloudsync/internal/types"
)

// ViewState is the in-memory cloud state hydration maintains: the recent
// rounds window, the latest model snapshot and the fast counters.
type ViewState struct {
	Rounds   []*types.Round
	AiState  *types.AiState
	Counters map[string]int64
}

// Reduce folds one inbound sync event into the view. Pure: the input view is
// not mutated. New rounds are prepended, re-sorted by played_at (newest
// first) and capped at bound; counter updates replace by key; model-state
// updates replace wholesale.
func Reduce(view ViewState, ev realtime.Event, bound int) ViewState {
	switch ev.Kind {
	case realtime.KindRoundInserted:
		if ev.Round == nil {
			return view
		}
		for _, r := range view.Rounds {
			if r.ClientRoundID == ev.Round.ClientRoundID {
				return view
			}
		}
		rounds := make([]*types.Round, 0, len(view.Rounds)+1)
		rounds = append(rounds, ev.Round)
		rounds = append(rounds, view.Rounds...)
		sort.SliceStable(rounds, func(i, j int) bool {
			if !rounds[i].PlayedAt.Equal(rounds[j].PlayedAt) {
				return rounds[i].PlayedAt.After(rounds[j].PlayedAt)
			}
			return rounds[i].RoundNumber > rounds[j].RoundNumber
		})
		if bound > 0 && len(rounds) > bound {
			rounds = rounds[:bound]
		}
		view.Rounds = rounds
		return view

	case realtime.KindAiStateChanged:
		if ev.AiState == nil {
			return view
		}
		view.AiState = ev.AiState
		return view

	case realtime.KindCounterChanged:
		if ev.Counter == nil {
			return view
		}
		counters := make(map[string]int64, len(view.Counters)+1)
		for k, v := range view.Counters {
			counters[k] = v
		}
		counters[ev.Counter.Key] = ev.Counter.Value
		view.Counters = counters
		return view

	default:
		return view
	}
}
