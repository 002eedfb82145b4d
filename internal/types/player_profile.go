package types

import (
	"time"

	"github.com/google/uuid"
)

// PlayerProfile is the demographic/consent record, one per account.
// Never hard-deleted by the sync subsystem.
type PlayerProfile struct {
	UserID            uuid.UUID  `gorm:"type:uuid;primaryKey;column:user_id" json:"user_id"`
	Username          string     `gorm:"not null;column:username" json:"username"`
	FirstName         string     `gorm:"column:first_name" json:"first_name"`
	LastInitial       string     `gorm:"column:last_initial" json:"last_initial"`
	Grade             string     `gorm:"column:grade" json:"grade"`
	Age               int        `gorm:"column:age" json:"age"`
	School            string     `gorm:"column:school" json:"school"`
	PriorExperience   string     `gorm:"column:prior_experience" json:"prior_experience"`
	TrainingCompleted bool       `gorm:"not null;default:false;column:training_completed" json:"training_completed"`
	TrainingCount     int        `gorm:"not null;default:0;column:training_count" json:"training_count"`
	ConsentVersion    string     `gorm:"column:consent_version" json:"consent_version"`
	ConsentGrantedAt  *time.Time `gorm:"column:consent_granted_at" json:"consent_granted_at"`
	CreatedAt         time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (PlayerProfile) TableName() string {
	return "demographics_profiles"
}
