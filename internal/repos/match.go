package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mirrormatch/cloudsync/internal/platform/dbctx"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/types"
)

type MatchRepo interface {
	InsertIgnoreDuplicates(dbc dbctx.Context, matches []*types.Match) error
	UpsertByID(dbc dbctx.Context, matches []*types.Match) error
	ListBySession(dbc dbctx.Context, userID, sessionID uuid.UUID) ([]*types.Match, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type matchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMatchRepo(db *gorm.DB, baseLog *logger.Logger) MatchRepo {
	return &matchRepo{db: db, log: baseLog.With("repo", "MatchRepo")}
}

func (r *matchRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *matchRepo) InsertIgnoreDuplicates(dbc dbctx.Context, matches []*types.Match) error {
	if len(matches) == 0 {
		return nil
	}
	return r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_match_id"}},
			DoNothing: true,
		}).
		Create(&matches).Error
}

func (r *matchRepo) UpsertByID(dbc dbctx.Context, matches []*types.Match) error {
	if len(matches) == 0 {
		return nil
	}
	return r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&matches).Error
}

func (r *matchRepo) ListBySession(dbc dbctx.Context, userID, sessionID uuid.UUID) ([]*types.Match, error) {
	var results []*types.Match
	err := r.conn(dbc).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("started_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *matchRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.conn(dbc).
		Model(&types.Match{}).
		Where("id = ?", id).
		Updates(updates).Error
}
