package migration

// Phase is one resumable unit of migration work covering one entity type.
type Phase string

const (
	PhaseProfile       Phase = "profile"
	PhaseSessions      Phase = "sessions"
	PhaseStatsProfiles Phase = "statsProfiles"
	PhaseAiStates      Phase = "aiStates"
	PhaseRounds        Phase = "rounds"
	PhaseMatches       Phase = "matches"
)

// PhaseOrder is the dependency order phases execute in: a session must exist
// before a round referencing it, a profile before its model state.
var PhaseOrder = []Phase{
	PhaseProfile,
	PhaseSessions,
	PhaseStatsProfiles,
	PhaseAiStates,
	PhaseRounds,
	PhaseMatches,
}

type PhaseProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Progress is the per-phase completion record. Callers persist it and pass
// it back as resume; re-running with accurate counts produces the same
// remote state as an uninterrupted run.
type Progress map[Phase]PhaseProgress

func (p Progress) DoneFor(phase Phase) int {
	if p == nil {
		return 0
	}
	return p[phase].Done
}

func (p Progress) Clone() Progress {
	out := make(Progress, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Complete reports whether every phase finished.
func (p Progress) Complete() bool {
	if p == nil {
		return false
	}
	for _, phase := range PhaseOrder {
		pp, ok := p[phase]
		if !ok || pp.Done < pp.Total {
			return false
		}
	}
	return true
}
