package realtime

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/types"
)

// Kind tags the inbound sync event union.
type Kind string

const (
	KindRoundInserted  Kind = "round_inserted"
	KindAiStateChanged Kind = "ai_state_changed"
	KindCounterChanged Kind = "counter_changed"
)

// Event is the single inbound event type folded through the hydration
// reducer. Exactly one of Round, AiState, Counter is set, per Kind.
type Event struct {
	Kind           Kind           `json:"kind"`
	UserID         uuid.UUID      `json:"user_id"`
	StatsProfileID uuid.UUID      `json:"stats_profile_id"`
	Round          *types.Round   `json:"round,omitempty"`
	AiState        *types.AiState `json:"ai_state,omitempty"`
	Counter        *CounterChange `json:"counter,omitempty"`
}

type CounterChange struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// Channel names the pub/sub channel for one (account, profile) scope.
func Channel(userID, statsProfileID uuid.UUID) string {
	return fmt.Sprintf("sync:%s:%s", userID, statsProfileID)
}
