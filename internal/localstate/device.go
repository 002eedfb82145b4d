package localstate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mirrormatch/cloudsync/internal/platform/logger"
)

// Device-scoped keys the sync subsystem owns.
const (
	KeyContinuityID     = "sync.continuity_id"
	KeyCurrentProfileID = "sync.current_profile_id"
)

// DeviceStore is the scoped get/set/remove capability over on-device
// key-value storage.
type DeviceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type deviceKV struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"not null;column:value"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

func (deviceKV) TableName() string {
	return "device_kv"
}

type sqliteDeviceStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteDeviceStore(db *gorm.DB, baseLog *logger.Logger) (DeviceStore, error) {
	if err := db.AutoMigrate(&deviceKV{}); err != nil {
		return nil, err
	}
	return &sqliteDeviceStore{db: db, log: baseLog.With("store", "DeviceStore")}, nil
}

func (s *sqliteDeviceStore) Get(ctx context.Context, key string) (string, bool, error) {
	var row deviceKV
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *sqliteDeviceStore) Set(ctx context.Context, key, value string) error {
	row := deviceKV{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

func (s *sqliteDeviceStore) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&deviceKV{}, "key = ?", key).Error
}

// EnsureContinuityID resolves the device's session-continuity identifier,
// minting and persisting one on first use.
func EnsureContinuityID(ctx context.Context, store DeviceStore) (string, error) {
	id, ok, err := store.Get(ctx, KeyContinuityID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.New().String()
	if err := store.Set(ctx, KeyContinuityID, id); err != nil {
		return "", err
	}
	return id, nil
}
