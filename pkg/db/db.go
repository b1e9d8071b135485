package db

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/harvestprice/internal/config"
	obslogger "github.com/smallbiznis/harvestprice/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// New opens the configured database and registers tracing and pool metrics.
func New(p Params) (*gorm.DB, error) {
	cfg := ConfigFrom(p.Config)
	gormLog := obslogger.DefaultGormLoggerConfig()
	gormLog.Base = p.Log.Named("gorm")
	conn, err := Open(cfg, p.Config.AppName, gormLog)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	p.Log.Named("db").Info("database connected",
		zap.String("type", cfg.Type),
		zap.String("name", cfg.Name),
	)
	return conn, nil
}

func Open(cfg Config, appName string, logCfg obslogger.GormLoggerConfig) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:  obslogger.NewGormLogger(logCfg),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.Name))); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	dbName := cfg.Name
	if dbName == "" {
		dbName = appName
	}
	if err := conn.Use(gormprom.New(gormprom.Config{
		DBName:          dbName,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, fmt.Errorf("register metrics plugin: %w", err)
	}

	return conn, nil
}
