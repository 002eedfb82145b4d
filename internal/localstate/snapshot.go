package localstate

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Snapshot is the complete local state for one account at a point in time,
// the input to migration. Identifiers are device-assigned strings; migration
// remaps them to remote-safe ids. Migration assumes the snapshot is frozen
// for the duration of the run; pausing local play is the caller's job.
type Snapshot struct {
	Profile       LocalProfile       `json:"profile"`
	StatsProfiles []LocalStatsProfile `json:"stats_profiles"`
	Rounds        []LocalRound        `json:"rounds"`
	Matches       []LocalMatch        `json:"matches"`
	AiStates      []LocalAiState      `json:"ai_states"`
}

type LocalProfile struct {
	Username          string     `json:"username"`
	FirstName         string     `json:"first_name"`
	LastInitial       string     `json:"last_initial"`
	Grade             string     `json:"grade"`
	Age               int        `json:"age"`
	School            string     `json:"school"`
	PriorExperience   string     `json:"prior_experience"`
	TrainingCompleted bool       `json:"training_completed"`
	TrainingCount     int        `json:"training_count"`
	ConsentVersion    string     `json:"consent_version"`
	ConsentGrantedAt  *time.Time `json:"consent_granted_at"`
}

type LocalStatsProfile struct {
	ID                string `json:"id"`
	BaseName          string `json:"base_name"`
	ProfileVersion    int    `json:"profile_version"`
	DisplayName       string `json:"display_name"`
	TrainingCount     int    `json:"training_count"`
	TrainingCompleted bool   `json:"training_completed"`
	PredictorDefault  bool   `json:"predictor_default"`
	PreviousID        string `json:"previous_id"`
	NextID            string `json:"next_id"`
	Archived          bool   `json:"archived"`
}

type LocalRound struct {
	ClientRoundID       string    `json:"client_round_id"`
	SessionKey          string    `json:"session_key"`
	StatsProfileID      string    `json:"stats_profile_id"`
	MatchID             string    `json:"match_id"`
	RoundNumber         int       `json:"round_number"`
	PlayedAt            time.Time `json:"played_at"`
	Mode                string    `json:"mode"`
	Difficulty          string    `json:"difficulty"`
	PlayerMove          string    `json:"player_move"`
	AiMove              string    `json:"ai_move"`
	PredictedPlayerMove string    `json:"predicted_player_move"`
	Outcome             string    `json:"outcome"`
	DecisionPolicy      string    `json:"decision_policy"`
	AiConfidence        float64   `json:"ai_confidence"`
	ConfidenceBucket    string    `json:"confidence_bucket"`
	StreakAi            int       `json:"streak_ai"`
	StreakYou           int       `json:"streak_you"`
}

type LocalMatch struct {
	ClientMatchID  string     `json:"client_match_id"`
	SessionKey     string     `json:"session_key"`
	StatsProfileID string     `json:"stats_profile_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
	ScoreYou       int        `json:"score_you"`
	ScoreAi        int        `json:"score_ai"`
}

type LocalAiState struct {
	StatsProfileID string          `json:"stats_profile_id"`
	ModelVersion   int             `json:"model_version"`
	RoundsSeen     int             `json:"rounds_seen"`
	State          json.RawMessage `json:"state"`
	NeedsRebuild   bool            `json:"needs_rebuild"`
}

func LoadSnapshot(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func SaveSnapshot(path string, snap *Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
