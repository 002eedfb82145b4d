package types

import (
	"time"

	"github.com/google/uuid"
)

// StatsProfile is one named predictor profile a player trains. Profiles are
// archived rather than deleted; a retrained copy supersedes its predecessor
// through the previous/next lineage pointers.
type StatsProfile struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	BaseName          string     `gorm:"not null;column:base_name" json:"base_name"`
	ProfileVersion    int        `gorm:"not null;default:1;column:profile_version" json:"profile_version"`
	DisplayName       string     `gorm:"column:display_name" json:"display_name"`
	TrainingCount     int        `gorm:"not null;default:0;column:training_count" json:"training_count"`
	TrainingCompleted bool       `gorm:"not null;default:false;column:training_completed" json:"training_completed"`
	PredictorDefault  bool       `gorm:"not null;default:false;column:predictor_default" json:"predictor_default"`
	PreviousProfileID *uuid.UUID `gorm:"type:uuid;column:previous_profile_id" json:"previous_profile_id"`
	NextProfileID     *uuid.UUID `gorm:"type:uuid;column:next_profile_id" json:"next_profile_id"`
	Archived          bool       `gorm:"not null;default:false;column:archived" json:"archived"`
	Version           int        `gorm:"not null;default:1;column:version" json:"version"`
	CreatedAt         time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (StatsProfile) TableName() string {
	return "stats_profiles"
}
