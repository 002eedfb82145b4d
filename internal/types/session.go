package types

import (
	"time"

	"github.com/google/uuid"
)

// Session is a device/login session window grouping rounds and matches.
// Rows are find-or-create by (user_id, client_session_id), never duplicated.
type Session struct {
	ID                    uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID                uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_sessions_user_client;column:user_id" json:"user_id"`
	ClientSessionID       string     `gorm:"not null;uniqueIndex:idx_sessions_user_client;column:client_session_id" json:"client_session_id"`
	PrimaryStatsProfileID *uuid.UUID `gorm:"type:uuid;column:primary_stats_profile_id" json:"primary_stats_profile_id"`
	StartedAt             time.Time  `gorm:"not null;column:started_at" json:"started_at"`
	EndedAt               *time.Time `gorm:"column:ended_at" json:"ended_at"`
	LastEventAt           time.Time  `gorm:"not null;column:last_event_at" json:"last_event_at"`
}

func (Session) TableName() string {
	return "sessions"
}
