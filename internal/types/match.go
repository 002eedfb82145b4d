package types

import (
	"time"

	"github.com/google/uuid"
)

// Match aggregates rounds within one play session. ClientMatchID is the
// device-assigned idempotency key.
type Match struct {
	ID                  uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID              uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	SessionID           uuid.UUID  `gorm:"type:uuid;not null;column:session_id" json:"session_id"`
	StatsProfileID      uuid.UUID  `gorm:"type:uuid;not null;index;column:stats_profile_id" json:"stats_profile_id"`
	ClientMatchID       string     `gorm:"not null;uniqueIndex;column:client_match_id" json:"client_match_id"`
	StartedAt           time.Time  `gorm:"not null;column:started_at" json:"started_at"`
	EndedAt             *time.Time `gorm:"column:ended_at" json:"ended_at"`
	ScoreYou            int        `gorm:"not null;default:0;column:score_you" json:"score_you"`
	ScoreAi             int        `gorm:"not null;default:0;column:score_ai" json:"score_ai"`
	LeaderboardName     string     `gorm:"column:leaderboard_name" json:"leaderboard_name"`
	LeaderboardEligible bool       `gorm:"not null;default:false;column:leaderboard_eligible" json:"leaderboard_eligible"`
	LeaderboardRank     *int       `gorm:"column:leaderboard_rank" json:"leaderboard_rank"`
	CreatedAt           time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (Match) TableName() string {
	return "matches"
}
