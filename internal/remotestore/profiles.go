package remotestore

import (
	"context"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/types"
)

func (s *Store) UpsertPlayerProfile(ctx context.Context, profile *types.PlayerProfile) error {
	return s.enqueue(ctx, "upsert_player_profile", func(taskCtx context.Context) error {
		return s.profiles.Upsert(s.dbc(taskCtx), profile)
	})
}

func (s *Store) LoadPlayerProfile(ctx context.Context, userID uuid.UUID) (*types.PlayerProfile, error) {
	p, err := s.profiles.GetByUserID(s.dbc(ctx), userID)
	if err != nil {
		return nil, normalize(err)
	}
	return p, nil
}

func (s *Store) UpdatePlayerProfileFields(ctx context.Context, userID uuid.UUID, updates map[string]interface{}) error {
	return s.enqueue(ctx, "update_player_profile", func(taskCtx context.Context) error {
		return s.profiles.UpdateFields(s.dbc(taskCtx), userID, updates)
	})
}

func (s *Store) UpsertStatsProfile(ctx context.Context, profile *types.StatsProfile) error {
	return s.enqueue(ctx, "upsert_stats_profile", func(taskCtx context.Context) error {
		return s.stats.Upsert(s.dbc(taskCtx), profile)
	})
}

func (s *Store) InsertStatsProfile(ctx context.Context, profile *types.StatsProfile) error {
	return s.enqueue(ctx, "insert_stats_profile", func(taskCtx context.Context) error {
		return s.stats.Create(s.dbc(taskCtx), profile)
	})
}

func (s *Store) SelectStatsProfiles(ctx context.Context, userID uuid.UUID) ([]*types.StatsProfile, error) {
	list, err := s.stats.ListByUserID(s.dbc(ctx), userID)
	if err != nil {
		return nil, normalize(err)
	}
	return list, nil
}

func (s *Store) LoadStatsProfile(ctx context.Context, id uuid.UUID) (*types.StatsProfile, error) {
	p, err := s.stats.GetByID(s.dbc(ctx), id)
	if err != nil {
		return nil, normalize(err)
	}
	return p, nil
}

func (s *Store) UpdateStatsProfileFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return s.enqueue(ctx, "update_stats_profile", func(taskCtx context.Context) error {
		return s.stats.UpdateFields(s.dbc(taskCtx), id, updates)
	})
}

// ArchiveStatsProfile marks a profile archived; profiles are never hard
// deleted.
func (s *Store) ArchiveStatsProfile(ctx context.Context, id uuid.UUID) error {
	return s.UpdateStatsProfileFields(ctx, id, map[string]interface{}{"archived": true})
}
