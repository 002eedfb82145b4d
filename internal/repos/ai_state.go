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

type AiStateRepo interface {
	// Upsert keys on (user_id, stats_profile_id): at most one live model
	// snapshot per profile.
	Upsert(dbc dbctx.Context, state *types.AiState) error
	GetByProfile(dbc dbctx.Context, userID, statsProfileID uuid.UUID) (*types.AiState, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type aiStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAiStateRepo(db *gorm.DB, baseLog *logger.Logger) AiStateRepo {
	return &aiStateRepo{db: db, log: baseLog.With("repo", "AiStateRepo")}
}

func (r *aiStateRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *aiStateRepo) Upsert(dbc dbctx.Context, state *types.AiState) error {
	return r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "stats_profile_id"}},
			UpdateAll: true,
		}).
		Create(state).Error
}

func (r *aiStateRepo) GetByProfile(dbc dbctx.Context, userID, statsProfileID uuid.UUID) (*types.AiState, error) {
	var result types.AiState
	err := r.conn(dbc).
		Where("user_id = ? AND stats_profile_id = ?", userID, statsProfileID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *aiStateRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	return r.conn(dbc).
		Model(&types.AiState{}).
		Where("id = ?", id).
		Updates(updates).Error
}
