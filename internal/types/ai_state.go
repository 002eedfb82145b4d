package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AiState is the serialized predictive-model snapshot for one StatsProfile.
// The State blob is opaque to the sync subsystem; at most one live row per
// (user_id, stats_profile_id).
type AiState struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_ai_states_user_profile;column:user_id" json:"user_id"`
	StatsProfileID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_ai_states_user_profile;column:stats_profile_id" json:"stats_profile_id"`
	ModelVersion   int            `gorm:"not null;default:1;column:model_version" json:"model_version"`
	RoundsSeen     int            `gorm:"not null;default:0;column:rounds_seen" json:"rounds_seen"`
	State          datatypes.JSON `gorm:"column:state" json:"state"`
	NeedsRebuild   bool           `gorm:"not null;default:false;column:needs_rebuild" json:"needs_rebuild"`
	Version        int            `gorm:"not null;default:1;column:version" json:"version"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (AiState) TableName() string {
	return "ai_states"
}
