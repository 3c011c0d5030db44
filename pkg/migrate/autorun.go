package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/trailpack-backend/pkg/config"
	"github.com/angelmondragon/trailpack-backend/pkg/db"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on start when the app runs in dev
// with TRAILPACK_AUTO_MIGRATE set. Sqlite gets the embedded mirror and seed;
// Postgres gets the embedded goose migrations.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.DB.IsSQLite() {
		logg.Warn(ctx, "sqlite driver selected, applying embedded schema instead of goose")
		return ApplySQLite(ctx, client.DB(), true)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	migrator, err := NewMigrator(sqlDB, "")
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	results, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	version, err := migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"applied":        len(results),
		"schema_version": version,
	}), "dev migrations applied")
	return nil
}
