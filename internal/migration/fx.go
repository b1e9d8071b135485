package migration

import (
	"strings"

	"github.com/smallbiznis/harvestprice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		dialect := strings.ToLower(strings.TrimSpace(cfg.DBType))
		if dialect != "postgres" {
			log.Info("applying schema with gorm automigrate", zap.String("dialect", dialect))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
