package remotestore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/types"
)

// FindOrCreateSession resolves the canonical session row for
// (user_id, client_session_id). The insert upserts on that pair, so a race
// between two devices collapses onto one row.
func (s *Store) FindOrCreateSession(ctx context.Context, session *types.Session) (*types.Session, error) {
	existing, err := s.sessions.GetByClientSessionID(s.dbc(ctx), session.UserID, session.ClientSessionID)
	if err != nil {
		return nil, normalize(err)
	}
	if existing != nil {
		if session.LastEventAt.After(existing.LastEventAt) {
			err := s.enqueue(ctx, "touch_session", func(taskCtx context.Context) error {
				return s.sessions.UpdateFields(s.dbc(taskCtx), existing.ID, map[string]interface{}{
					"last_event_at": session.LastEventAt,
				})
			})
			if err != nil {
				return nil, err
			}
			existing.LastEventAt = session.LastEventAt
		}
		return existing, nil
	}

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	if session.LastEventAt.IsZero() {
		session.LastEventAt = session.StartedAt
	}
	err = s.enqueue(ctx, "create_session", func(taskCtx context.Context) error {
		return s.sessions.Upsert(s.dbc(taskCtx), session)
	})
	if err != nil {
		return nil, err
	}

	// Re-read: a concurrent creator may have won the conflict.
	created, err := s.sessions.GetByClientSessionID(s.dbc(ctx), session.UserID, session.ClientSessionID)
	if err != nil {
		return nil, normalize(err)
	}
	if created == nil {
		return nil, normalize(fmt.Errorf("session %s not visible after upsert", session.ClientSessionID))
	}
	return created, nil
}

func (s *Store) UpdateSessionFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return s.enqueue(ctx, "update_session", func(taskCtx context.Context) error {
		return s.sessions.UpdateFields(s.dbc(taskCtx), id, updates)
	})
}
