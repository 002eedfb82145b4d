package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/mirrormatch/cloudsync/internal/db"
	"github.com/mirrormatch/cloudsync/internal/hydration"
	"github.com/mirrormatch/cloudsync/internal/identity"
	"github.com/mirrormatch/cloudsync/internal/localstate"
	"github.com/mirrormatch/cloudsync/internal/migration"
	"github.com/mirrormatch/cloudsync/internal/observability"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/queue"
	"github.com/mirrormatch/cloudsync/internal/realtime/bus"
	"github.com/mirrormatch/cloudsync/internal/remotestore"
)

// App wires one account/session context: one write queue, one store facade,
// one hydration controller, one migration engine.
type App struct {
	Log       *logger.Logger
	DB        *gorm.DB
	Cfg       Config
	Queue     *queue.Queue
	Store     *remotestore.Store
	Identity  identity.Client
	Device    localstate.DeviceStore
	Feed      bus.Bus
	Hydration *hydration.Controller
	Migration *migration.Engine

	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "mirrormatch-cloudsync",
		Environment: cfg.LogMode,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	deviceDB, err := db.NewDeviceDB(cfg.DevicePath, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	device, err := localstate.NewSQLiteDeviceStore(deviceDB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init device store: %w", err)
	}

	var feed bus.Bus
	if cfg.RedisAddr != "" {
		feed, err = bus.NewRedisBus(cfg.RedisAddr, log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init sync bus: %w", err)
		}
	}

	q := queue.New(log, cfg.Queue)
	store := remotestore.New(theDB, q, log)
	ident := identity.NewHTTPClient(cfg.IdentityBaseURL, log)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Queue:        q,
		Store:        store,
		Identity:     ident,
		Device:       device,
		Feed:         feed,
		Hydration:    hydration.New(store, device, feed, log),
		Migration:    migration.New(store, ident, log),
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Hydration != nil {
		a.Hydration.Disable()
	}
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.Feed != nil {
		_ = a.Feed.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
