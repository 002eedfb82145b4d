package remotestore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mirrormatch/cloudsync/internal/platform/apierr"
	"github.com/mirrormatch/cloudsync/internal/types"
)

// UpsertUserSetting writes a scoped setting with optimistic concurrency.
// The row is resolved by its full identity including the scope target, so
// the same key under the profile scope holds a separate value per profile.
// Losing the version race surfaces a 409, which the write queue retries
// against the freshly read version.
func (s *Store) UpsertUserSetting(ctx context.Context, setting *types.UserSetting) error {
	return s.enqueue(ctx, "upsert_user_setting", func(taskCtx context.Context) error {
		dbc := s.dbc(taskCtx)
		current, err := s.settings.Get(dbc, setting.UserID, setting.Scope, setting.Key, setting.StatsProfileID, setting.SessionID)
		if err != nil {
			return err
		}
		if current == nil {
			if setting.ID == uuid.Nil {
				setting.ID = uuid.New()
			}
			if setting.Version == 0 {
				setting.Version = 1
			}
			setting.UpdatedAt = time.Now().UTC()
			return s.settings.Insert(dbc, setting)
		}
		affected, err := s.settings.UpdateVersioned(dbc, current.ID, current.Version, map[string]interface{}{
			"value": datatypes.JSON(setting.Value),
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return apierr.New(409, "", fmt.Errorf("user_setting %s/%s version conflict", setting.Scope, setting.Key))
		}
		return nil
	})
}

func (s *Store) LoadUserSetting(ctx context.Context, userID uuid.UUID, scope, key string, statsProfileID, sessionID *uuid.UUID) (*types.UserSetting, error) {
	setting, err := s.settings.Get(s.dbc(ctx), userID, scope, key, statsProfileID, sessionID)
	if err != nil {
		return nil, normalize(err)
	}
	return setting, nil
}

func (s *Store) SelectUserSettings(ctx context.Context, userID uuid.UUID) ([]*types.UserSetting, error) {
	list, err := s.settings.ListByUserID(s.dbc(ctx), userID)
	if err != nil {
		return nil, normalize(err)
	}
	return list, nil
}

func (s *Store) DeleteUserSetting(ctx context.Context, id uuid.UUID) error {
	return s.enqueue(ctx, "delete_user_setting", func(taskCtx context.Context) error {
		return s.settings.Delete(s.dbc(taskCtx), id)
	})
}
