package annotation

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lewtec/demarcador/internal/repository"
)

func GetDatabase(filename string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", filename+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if filename == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// PrepareDatabase migrates the schema and, on an empty database, seeds the
// classes from the config.
func PrepareDatabase(ctx context.Context, db *sql.DB, config *Config, logger *zap.Logger) error {
	logger = logger.Named("db")
	logger.Debug("applying migrations")
	if err := repository.Migrate(db); err != nil {
		return err
	}

	classes := repository.NewClassRepository(db)
	existing, err := classes.List(ctx)
	if err != nil {
		return fmt.Errorf("while listing classes: %w", err)
	}
	if len(existing) > 0 || len(config.Classes) == 0 {
		return nil
	}
	seeded, err := classes.Save(ctx, config.SeedClasses())
	if err != nil {
		return fmt.Errorf("while seeding classes: %w", err)
	}
	logger.Info("classes seeded from config", zap.Int("count", len(seeded)))
	return nil
}
