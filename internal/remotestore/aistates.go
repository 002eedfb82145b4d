package remotestore

import (
	"context"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/types"
)

func (s *Store) UpsertAiState(ctx context.Context, state *types.AiState) error {
	return s.enqueue(ctx, "upsert_ai_state", func(taskCtx context.Context) error {
		if state.ID == uuid.Nil {
			state.ID = uuid.New()
		}
		return s.aiStates.Upsert(s.dbc(taskCtx), state)
	})
}

func (s *Store) LoadAiState(ctx context.Context, userID, statsProfileID uuid.UUID) (*types.AiState, error) {
	st, err := s.aiStates.GetByProfile(s.dbc(ctx), userID, statsProfileID)
	if err != nil {
		return nil, normalize(err)
	}
	return st, nil
}
