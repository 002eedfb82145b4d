package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mirrormatch/cloudsync/internal/platform/logger"
)

// NewDeviceDB opens the on-device SQLite database backing the device-scoped
// key-value store.
func NewDeviceDB(path string, log *logger.Logger) (*gorm.DB, error) {
	log.Info("Opening device database", "path", path)
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open device db: %w", err)
	}
	return gdb, nil
}
