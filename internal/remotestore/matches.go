package remotestore

import (
	"context"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/types"
)

func splitMatchRows(matches []*types.Match) (withID, withoutID []*types.Match) {
	for _, m := range matches {
		if m == nil {
			continue
		}
		if m.ID != uuid.Nil {
			withID = append(withID, m)
		} else {
			withoutID = append(withoutID, m)
		}
	}
	return withID, withoutID
}

func (s *Store) UpsertMatches(ctx context.Context, matches []*types.Match) error {
	if len(matches) == 0 {
		return nil
	}
	return s.enqueue(ctx, "upsert_matches", func(taskCtx context.Context) error {
		withID, withoutID := splitMatchRows(matches)
		if err := s.matches.UpsertByID(s.dbc(taskCtx), withID); err != nil {
			return err
		}
		return s.matches.InsertIgnoreDuplicates(s.dbc(taskCtx), withoutID)
	})
}

func (s *Store) SelectMatchesBySession(ctx context.Context, userID, sessionID uuid.UUID) ([]*types.Match, error) {
	list, err := s.matches.ListBySession(s.dbc(ctx), userID, sessionID)
	if err != nil {
		return nil, normalize(err)
	}
	return list, nil
}

func (s *Store) UpdateMatchFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return s.enqueue(ctx, "update_match", func(taskCtx context.Context) error {
		return s.matches.UpdateFields(s.dbc(taskCtx), id, updates)
	})
}
