package app

import (
	"github.com/mirrormatch/cloudsync/internal/platform/envutil"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/queue"
)

type Config struct {
	LogMode         string
	IdentityBaseURL string
	RedisAddr       string
	DevicePath      string
	Queue           queue.Config
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:         envutil.String("LOG_MODE", "development"),
		IdentityBaseURL: envutil.String("IDENTITY_BASE_URL", "http://localhost:8085"),
		RedisAddr:       envutil.String("REDIS_ADDR", ""),
		DevicePath:      envutil.String("DEVICE_DB_PATH", "mirrormatch-device.db"),
		Queue:           queue.DefaultConfig(),
	}
	cfg.Queue.MaxAttempts = envutil.Int("WRITE_QUEUE_MAX_ATTEMPTS", cfg.Queue.MaxAttempts)
	cfg.Queue.BaseDelay = envutil.Duration("WRITE_QUEUE_BASE_DELAY", cfg.Queue.BaseDelay)
	log.Debug("config loaded", "identity_base_url", cfg.IdentityBaseURL)
	return cfg
}
