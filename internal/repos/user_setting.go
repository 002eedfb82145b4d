package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mirrormatch/cloudsync/internal/platform/dbctx"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/types"
)

type UserSettingRepo interface {
	// Get resolves a setting by its full identity: account, scope, key and
	// the scope target. Nil target pointers match only rows where the
	// corresponding column is NULL.
	Get(dbc dbctx.Context, userID uuid.UUID, scope, key string, statsProfileID, sessionID *uuid.UUID) (*types.UserSetting, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserSetting, error)
	Insert(dbc dbctx.Context, setting *types.UserSetting) error
	// UpdateVersioned applies updates only when the stored version still
	// matches expectedVersion; returns the number of rows touched so the
	// caller can detect an optimistic-concurrency loss.
	UpdateVersioned(dbc dbctx.Context, id uuid.UUID, expectedVersion int, updates map[string]interface{}) (int64, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type userSettingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserSettingRepo(db *gorm.DB, baseLog *logger.Logger) UserSettingRepo {
	return &userSettingRepo{db: db, log: baseLog.With("repo", "UserSettingRepo")}
}

func (r *userSettingRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *userSettingRepo) Get(dbc dbctx.Context, userID uuid.UUID, scope, key string, statsProfileID, sessionID *uuid.UUID) (*types.UserSetting, error) {
	q := r.conn(dbc).
		Where("user_id = ? AND scope = ? AND key = ?", userID, scope, key)
	if statsProfileID != nil {
		q = q.Where("stats_profile_id = ?", *statsProfileID)
	} else {
		q = q.Where("stats_profile_id IS NULL")
	}
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	} else {
		q = q.Where("session_id IS NULL")
	}
	var result types.UserSetting
	err := q.First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *userSettingRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserSetting, error) {
	var results []*types.UserSetting
	err := r.conn(dbc).
		Where("user_id = ?", userID).
		Order("scope ASC, key ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userSettingRepo) Insert(dbc dbctx.Context, setting *types.UserSetting) error {
	return r.conn(dbc).Create(setting).Error
}

func (r *userSettingRepo) UpdateVersioned(dbc dbctx.Context, id uuid.UUID, expectedVersion int, updates map[string]interface{}) (int64, error) {
	updates["version"] = expectedVersion + 1
	updates["updated_at"] = time.Now().UTC()
	res := r.conn(dbc).
		Model(&types.UserSetting{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *userSettingRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return r.conn(dbc).Delete(&types.UserSetting{}, "id = ?", id).Error
}
