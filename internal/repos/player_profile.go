package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mirrormatch/cloudsync/internal/platform/dbctx"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/types"
)

type PlayerProfileRepo interface {
	Upsert(dbc dbctx.Context, profile *types.PlayerProfile) error
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.PlayerProfile, error)
	UpdateFields(dbc dbctx.Context, userID uuid.UUID, updates map[string]interface{}) error
}

type playerProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlayerProfileRepo(db *gorm.DB, baseLog *logger.Logger) PlayerProfileRepo {
	return &playerProfileRepo{db: db, log: baseLog.With("repo", "PlayerProfileRepo")}
}

func (r *playerProfileRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *playerProfileRepo) Upsert(dbc dbctx.Context, profile *types.PlayerProfile) error {
	return r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(profile).Error
}

func (r *playerProfileRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.PlayerProfile, error) {
	var result types.PlayerProfile
	err := r.conn(dbc).Where("user_id = ?", userID).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *playerProfileRepo) UpdateFields(dbc dbctx.Context, userID uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	return r.conn(dbc).
		Model(&types.PlayerProfile{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}
