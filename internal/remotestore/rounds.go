package remotestore

import (
	"context"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/types"
)

// Post-hoc annotation columns; rounds are otherwise immutable once written.
var roundAnnotationColumns = map[string]bool{
	"mode":            true,
	"difficulty":      true,
	"decision_policy": true,
}

// splitRoundRows partitions a batch: rows carrying a pre-assigned primary
// key are upserted on that id (duplicate submission is idempotent), rows
// without one are plain inserts guarded by client_round_id (never silently
// merged into an unrelated existing row).
func splitRoundRows(rounds []*types.Round) (withID, withoutID []*types.Round) {
	for _, r := range rounds {
		if r == nil {
			continue
		}
		if r.ID != uuid.Nil {
			withID = append(withID, r)
		} else {
			withoutID = append(withoutID, r)
		}
	}
	return withID, withoutID
}

func (s *Store) UpsertRounds(ctx context.Context, rounds []*types.Round) error {
	if len(rounds) == 0 {
		return nil
	}
	return s.enqueue(ctx, "upsert_rounds", func(taskCtx context.Context) error {
		withID, withoutID := splitRoundRows(rounds)
		if err := s.rounds.UpsertByID(s.dbc(taskCtx), withID); err != nil {
			return err
		}
		return s.rounds.InsertIgnoreDuplicates(s.dbc(taskCtx), withoutID)
	})
}

func (s *Store) SelectRecentRounds(ctx context.Context, userID, statsProfileID uuid.UUID, limit int) ([]*types.Round, error) {
	list, err := s.rounds.ListRecent(s.dbc(ctx), userID, statsProfileID, limit)
	if err != nil {
		return nil, normalize(err)
	}
	return list, nil
}

// UpdateRoundFields applies post-hoc annotations; columns outside the
// annotation set are dropped.
func (s *Store) UpdateRoundFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if roundAnnotationColumns[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return s.enqueue(ctx, "update_round", func(taskCtx context.Context) error {
		return s.rounds.UpdateFields(s.dbc(taskCtx), id, filtered)
	})
}

func (s *Store) SelectCounters(ctx context.Context, userID, statsProfileID uuid.UUID) (map[string]int64, error) {
	counters, err := s.rounds.Counters(s.dbc(ctx), userID, statsProfileID)
	if err != nil {
		return nil, normalize(err)
	}
	return counters, nil
}
