package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mirrormatch/cloudsync/internal/platform/dbctx"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/types"
)

// Counter keys the fast-aggregate whitelist exposes to hydration.
const (
	CounterRoundsTotal = "rounds_total"
	CounterWinsYou     = "wins_you"
	CounterWinsAi      = "wins_ai"
	CounterDraws       = "draws"
)

type RoundRepo interface {
	// InsertIgnoreDuplicates inserts rows without a pre-assigned id; a
	// conflicting client_round_id is skipped so resubmission is idempotent.
	InsertIgnoreDuplicates(dbc dbctx.Context, rounds []*types.Round) error
	// UpsertByID upserts rows that carry a pre-assigned primary key.
	UpsertByID(dbc dbctx.Context, rounds []*types.Round) error
	ListRecent(dbc dbctx.Context, userID, statsProfileID uuid.UUID, limit int) ([]*types.Round, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Counters(dbc dbctx.Context, userID, statsProfileID uuid.UUID) (map[string]int64, error)
}

type roundRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRoundRepo(db *gorm.DB, baseLog *logger.Logger) RoundRepo {
	return &roundRepo{db: db, log: baseLog.With("repo", "RoundRepo")}
}

func (r *roundRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *roundRepo) InsertIgnoreDuplicates(dbc dbctx.Context, rounds []*types.Round) error {
	if len(rounds) == 0 {
		return nil
	}
	return r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_round_id"}},
			DoNothing: true,
		}).
		Create(&rounds).Error
}

func (r *roundRepo) UpsertByID(dbc dbctx.Context, rounds []*types.Round) error {
	if len(rounds) == 0 {
		return nil
	}
	return r.conn(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&rounds).Error
}

func (r *roundRepo) ListRecent(dbc dbctx.Context, userID, statsProfileID uuid.UUID, limit int) ([]*types.Round, error) {
	var results []*types.Round
	err := r.conn(dbc).
		Where("user_id = ? AND stats_profile_id = ?", userID, statsProfileID).
		Order("played_at DESC, round_number DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *roundRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.conn(dbc).
		Model(&types.Round{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *roundRepo) Counters(dbc dbctx.Context, userID, statsProfileID uuid.UUID) (map[string]int64, error) {
	type row struct {
		Outcome string
		N       int64
	}
	var rows []row
	err := r.conn(dbc).
		Model(&types.Round{}).
		Select("outcome, count(*) AS n").
		Where("user_id = ? AND stats_profile_id = ?", userID, statsProfileID).
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counters := map[string]int64{
		CounterRoundsTotal: 0,
		CounterWinsYou:     0,
		CounterWinsAi:      0,
		CounterDraws:       0,
	}
	for _, rr := range rows {
		counters[CounterRoundsTotal] += rr.N
		switch rr.Outcome {
		case "you":
			counters[CounterWinsYou] = rr.N
		case "ai":
			counters[CounterWinsAi] = rr.N
		case "draw":
			counters[CounterDraws] = rr.N
		}
	}
	return counters, nil
}
