package types

import (
	"time"

	"github.com/google/uuid"
)

// Round is one game decision. ClientRoundID is the device-assigned
// idempotency key; rows are immutable once written except for the
// post-hoc annotation fields (mode, difficulty, decision_policy).
type Round struct {
	ID                  uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID              uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	SessionID           uuid.UUID  `gorm:"type:uuid;not null;column:session_id" json:"session_id"`
	StatsProfileID      uuid.UUID  `gorm:"type:uuid;not null;index;column:stats_profile_id" json:"stats_profile_id"`
	MatchID             *uuid.UUID `gorm:"type:uuid;column:match_id" json:"match_id"`
	ClientRoundID       string     `gorm:"not null;uniqueIndex;column:client_round_id" json:"client_round_id"`
	RoundNumber         int        `gorm:"not null;column:round_number" json:"round_number"`
	PlayedAt            time.Time  `gorm:"not null;index;column:played_at" json:"played_at"`
	Mode                string     `gorm:"column:mode" json:"mode"`
	Difficulty          string     `gorm:"column:difficulty" json:"difficulty"`
	PlayerMove          string     `gorm:"not null;column:player_move" json:"player_move"`
	AiMove              string     `gorm:"not null;column:ai_move" json:"ai_move"`
	PredictedPlayerMove string     `gorm:"column:predicted_player_move" json:"predicted_player_move"`
	Outcome             string     `gorm:"not null;column:outcome" json:"outcome"`
	DecisionPolicy      string     `gorm:"column:decision_policy" json:"decision_policy"`
	AiConfidence        float64    `gorm:"column:ai_confidence" json:"ai_confidence"`
	ConfidenceBucket    string     `gorm:"column:confidence_bucket" json:"confidence_bucket"`
	StreakAi            int        `gorm:"not null;default:0;column:streak_ai" json:"streak_ai"`
	StreakYou           int        `gorm:"not null;default:0;column:streak_you" json:"streak_you"`
	CreatedAt           time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (Round) TableName() string {
	return "rounds"
}
