package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/easyrecs-backend/pkg/config"
	"github.com/angelmondragon/easyrecs-backend/pkg/db"
	"github.com/angelmondragon/easyrecs-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at startup when running in dev
// with EASYRECS_AUTO_MIGRATE set. Other environments use cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, DialectFor(cfg.DB.Driver), Embedded(), logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "source", "embedded")
	logg.Info(ctx, "migrate.dev_autorun")
	return runner.Up(ctx)
}
