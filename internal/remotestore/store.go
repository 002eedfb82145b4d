package remotestore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/mirrormatch/cloudsync/internal/platform/apierr"
	"github.com/mirrormatch/cloudsync/internal/platform/dbctx"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/queue"
	"github.com/mirrormatch/cloudsync/internal/repos"
)

// Store is the typed facade over the remote schema. Every mutation is
// submitted through the write queue; reads go straight to the database and
// may race against in-flight writes (callers tolerate eventually-consistent
// reads).
type Store struct {
	db  *gorm.DB
	q   *queue.Queue
	log *logger.Logger

	profiles repos.PlayerProfileRepo
	stats    repos.StatsProfileRepo
	sessions repos.SessionRepo
	rounds   repos.RoundRepo
	matches  repos.MatchRepo
	aiStates repos.AiStateRepo
	settings repos.UserSettingRepo
}

func New(db *gorm.DB, q *queue.Queue, baseLog *logger.Logger) *Store {
	log := baseLog.With("component", "RemoteStore")
	return &Store{
		db:       db,
		q:        q,
		log:      log,
		profiles: repos.NewPlayerProfileRepo(db, baseLog),
		stats:    repos.NewStatsProfileRepo(db, baseLog),
		sessions: repos.NewSessionRepo(db, baseLog),
		rounds:   repos.NewRoundRepo(db, baseLog),
		matches:  repos.NewMatchRepo(db, baseLog),
		aiStates: repos.NewAiStateRepo(db, baseLog),
		settings: repos.NewUserSettingRepo(db, baseLog),
	}
}

func (s *Store) dbc(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}

// enqueue wraps a mutation so its failure reaches the retry classifier and
// the caller in the normalized error shape.
func (s *Store) enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return s.q.Enqueue(ctx, name, func(taskCtx context.Context) error {
		return normalize(fn(taskCtx))
	})
}

// normalize folds any storage failure into a single *apierr.Error carrying
// a message, an optional status and the store error code.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if ae := apierr.From(err); ae != nil {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		status := 0
		if pgErr.Code == "23505" {
			status = 409
		}
		return apierr.New(status, pgErr.Code, err)
	}
	return apierr.New(0, "", err)
}
