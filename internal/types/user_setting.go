package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SettingScopeGlobal  = "global"
	SettingScopeProfile = "profile"
	SettingScopeSession = "session"
	SettingScopeDevice  = "device"
)

// UserSetting is a scoped key-value row, versioned for optimistic concurrency.
// The scope target (stats_profile_id / session_id) is part of the row's
// identity: the same key under the profile scope holds one value per profile.
type UserSetting struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_user_settings_scope_key;column:user_id" json:"user_id"`
	StatsProfileID *uuid.UUID     `gorm:"type:uuid;uniqueIndex:idx_user_settings_scope_key;column:stats_profile_id" json:"stats_profile_id"`
	SessionID      *uuid.UUID     `gorm:"type:uuid;uniqueIndex:idx_user_settings_scope_key;column:session_id" json:"session_id"`
	Scope          string         `gorm:"not null;uniqueIndex:idx_user_settings_scope_key;column:scope" json:"scope"`
	Key            string         `gorm:"not null;uniqueIndex:idx_user_settings_scope_key;column:key" json:"key"`
	Value          datatypes.JSON `gorm:"column:value" json:"value"`
	Version        int            `gorm:"not null;default:1;column:version" json:"version"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserSetting) TableName() string {
	return "user_settings"
}
