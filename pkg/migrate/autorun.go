package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/config"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/db"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
)

// shouldAutoRun reports whether startup applies migrations. SQLite journals always do,
// since the file belongs to the process and nobody else will migrate it.
func shouldAutoRun(cfg *config.Config, dialect string) bool {
	if dialect == config.DBDriverSQLite {
		return true
	}
	return cfg != nil && cfg.FeatureFlags.AutoMigrate
}

// MaybeRun brings the journal schema up to the embedded head before the process serves
// traffic, and logs the version it moved from and to.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil {
		return nil
	}
	ctx = logg.WithField(ctx, "dialect", client.Dialect())
	if !shouldAutoRun(cfg, client.Dialect()) {
		logg.Debug(ctx, "journal auto-migrate disabled")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	before, err := currentVersion(sqlDB, client.Dialect())
	if err != nil {
		return err
	}
	if err := RunEmbedded(ctx, sqlDB, client.Dialect(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	after, err := currentVersion(sqlDB, client.Dialect())
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"from_version": before, "to_version": after})
	if before == after {
		logg.Info(ctx, "journal schema up to date")
		return nil
	}
	logg.Info(ctx, "journal schema migrated")
	return nil
}

// currentVersion reads the applied goose version, creating the version table on first use.
func currentVersion(sqlDB *sql.DB, driver string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(gooseDialect(driver)); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}
