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

type StatsProfileRepo interface {
	Upsert(dbc dbctx.Context, profile *types.StatsProfile) error
	Create(dbc dbctx.Context, profile *types.StatsProfile) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StatsProfile, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.StatsProfile, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type statsProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStatsProfileRepo(db *gorm.DB, baseLog *logger.Logger) StatsProfileRepo {
	return &statsProfileRepo{db: db, log: baseLog.With("repo", "StatsProfileRepo")}
}

func (r *statsProfileRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *statsProfileRepo) Upsert(dbc dbctx.Context, profile *types.StatsProfile) error {
	return r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(profile).Error
}

func (r *statsProfileRepo) Create(dbc dbctx.Context, profile *types.StatsProfile) error {
	return r.conn(dbc).Create(profile).Error
}

func (r *statsProfileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StatsProfile, error) {
	var result types.StatsProfile
	err := r.conn(dbc).Where("id = ?", id).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListByUserID returns all profiles for an account, default profiles first,
// then by creation order.
func (r *statsProfileRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.StatsProfile, error) {
	var results []*types.StatsProfile
	err := r.conn(dbc).
		Where("user_id = ?", userID).
		Order("predictor_default DESC, created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *statsProfileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	return r.conn(dbc).
		Model(&types.StatsProfile{}).
		Where("id = ?", id).
		Updates(updates).Error
}
