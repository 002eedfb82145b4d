package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mirrormatch/cloudsync/internal/platform/envutil"
	"github.com/mirrormatch/cloudsync/internal/platform/logger"
	"github.com/mirrormatch/cloudsync/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "mirrormatch")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	log.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.PlayerProfile{},
		&types.StatsProfile{},
		&types.Session{},
		&types.Round{},
		&types.Match{},
		&types.AiState{},
		&types.UserSetting{},
	)
	if err != nil {
		return err
	}

	// Cross-table linkage is cascade-scoped to the owning account.
	stmts := []string{
		`ALTER TABLE "stats_profiles" ADD CONSTRAINT "fk_stats_profiles_user_id"
		   FOREIGN KEY ("user_id") REFERENCES "demographics_profiles"("user_id") ON DELETE CASCADE`,
		`ALTER TABLE "rounds" ADD CONSTRAINT "fk_rounds_stats_profile_id"
		   FOREIGN KEY ("stats_profile_id") REFERENCES "stats_profiles"("id") ON DELETE CASCADE`,
		`ALTER TABLE "rounds" ADD CONSTRAINT "fk_rounds_session_id"
		   FOREIGN KEY ("session_id") REFERENCES "sessions"("id") ON DELETE CASCADE`,
		`ALTER TABLE "matches" ADD CONSTRAINT "fk_matches_stats_profile_id"
		   FOREIGN KEY ("stats_profile_id") REFERENCES "stats_profiles"("id") ON DELETE CASCADE`,
		`ALTER TABLE "ai_states" ADD CONSTRAINT "fk_ai_states_stats_profile_id"
		   FOREIGN KEY ("stats_profile_id") REFERENCES "stats_profiles"("id") ON DELETE CASCADE`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			s.log.Warn("constraint setup skipped", "error", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
