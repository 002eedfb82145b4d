package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mirrormatch/cloudsync/internal/platform/dbctx"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/types"
)

type SessionRepo interface {
	GetByClientSessionID(dbc dbctx.Context, userID uuid.UUID, clientSessionID string) (*types.Session, error)
	Upsert(dbc dbctx.Context, session *types.Session) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *sessionRepo) GetByClientSessionID(dbc dbctx.Context, userID uuid.UUID, clientSessionID string) (*types.Session, error) {
	var result types.Session
	err := r.conn(dbc).
		Where("user_id = ? AND client_session_id = ?", userID, clientSessionID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Upsert keys on (user_id, client_session_id) so a session row is never
// duplicated; a conflicting insert only advances last_event_at.
func (r *sessionRepo) Upsert(dbc dbctx.Context, session *types.Session) error {
	return r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "client_session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_event_at"}),
		}).
		Create(session).Error
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.conn(dbc).
		Model(&types.Session{}).
		Where("id = ?", id).
		Updates(updates).Error
}
